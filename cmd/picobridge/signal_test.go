//go:build unix

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-pico-bridge/internal/config"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/transporttest"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubBackend struct {
	open func(n int32) (transport.Transport, error)
	n    atomic.Int32
}

func (b *stubBackend) Kind() transport.Kind { return transport.KindRawBulk }

func (b *stubBackend) Open(context.Context, transport.Options) (transport.Transport, error) {
	return b.open(b.n.Add(1))
}

func useBackends(t *testing.T, bs ...transport.Backend) {
	t.Helper()
	prev := newBackends
	newBackends = func([]string) ([]transport.Backend, error) { return bs, nil }
	t.Cleanup(func() { newBackends = prev })
}

// interrupt runs on backend and transport goroutines, so it must not fail
// the test itself.
func interrupt() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
}

func runBridge(t *testing.T, cfg config.Config, wait bool, out *syncBuffer) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- run(context.Background(), cfg, wait, strings.NewReader(""), out) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
		return nil
	}
}

func TestRun_InterruptStopsSession(t *testing.T) {
	fake := &transporttest.Fake{}
	fake.OnRead = func(n int) {
		if n == 2 {
			interrupt()
		}
	}
	useBackends(t, &stubBackend{open: func(int32) (transport.Transport, error) { return fake, nil }})

	cfg := config.Default()
	cfg.PollInterval = time.Millisecond
	cfg.LogLevel = "off"
	out := &syncBuffer{}

	err := runBridge(t, cfg, false, out)
	require.ErrorIs(t, err, errInterrupted)
	require.Contains(t, out.String(), "interrupted\n")
	require.Equal(t, 1, fake.Closes())
	require.GreaterOrEqual(t, fake.Reads(), 2)
}

func TestRun_InterruptEndsWaitForDevice(t *testing.T) {
	prev := retryInterval
	retryInterval = 5 * time.Millisecond
	t.Cleanup(func() { retryInterval = prev })

	missing := errors.New("no usb device cafe:4011")
	backend := &stubBackend{open: func(n int32) (transport.Transport, error) {
		if n == 3 {
			interrupt()
		}
		return nil, missing
	}}
	useBackends(t, backend)

	cfg := config.Default()
	cfg.LogLevel = "off"
	out := &syncBuffer{}

	err := runBridge(t, cfg, true, out)
	require.ErrorIs(t, err, errInterrupted)
	require.GreaterOrEqual(t, backend.n.Load(), int32(3))
	require.Equal(t, 1, strings.Count(out.String(), "Couldn't find USB device!"))
	require.Contains(t, out.String(), "interrupted\n")
}
