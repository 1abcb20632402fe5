//go:build linux

package serialport

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

func openPair(t *testing.T, readTimeout time.Duration) (master *os.File, port *Port) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err = Open(Config{
		Device:       slave.Name(),
		BaudRate:     115200,
		ReadTimeout:  readTimeout,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return master, port
}

func TestPort_ReadN(t *testing.T) {
	master, port := openPair(t, 100*time.Millisecond)

	_, err := master.Write([]byte{0x02, 0x01, 0x05})
	require.NoError(t, err)

	buf, err := port.ReadN(64)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x01, 0x05}, buf)
}

func TestPort_ReadNStopsAtCount(t *testing.T) {
	master, port := openPair(t, time.Second)

	_, err := master.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)

	start := time.Now()
	buf, err := port.ReadN(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPort_ReadNTimeout(t *testing.T) {
	_, port := openPair(t, 30*time.Millisecond)

	start := time.Now()
	buf, err := port.ReadN(64)
	require.ErrorIs(t, err, transport.ErrTimeout)
	require.Nil(t, buf)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPort_WriteExact(t *testing.T) {
	master, port := openPair(t, 50*time.Millisecond)

	frame := []byte{0xC2, 0xAA, 0xBB}
	require.NoError(t, port.WriteExact(frame))

	buf := make([]byte, len(frame))
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, frame, buf)
}

func TestPort_Killability(t *testing.T) {
	_, port := openPair(t, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := port.ReadN(64)
		done <- err
	}()

	// Give the goroutine a chance to block
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for ReadN to return after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, port.Close())
	require.ErrorIs(t, port.WriteExact([]byte{0}), transport.ErrClosed)
}

func TestPort_ErrorPropagation(t *testing.T) {
	master, port := openPair(t, time.Second)

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	_, err := port.ReadN(64)
	require.Error(t, err)
	require.False(t, errors.Is(err, transport.ErrTimeout))
}

func TestBackend_OpenByIdentity(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	orig := listPorts
	t.Cleanup(func() { listPorts = orig })
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM9", IsUSB: true, VID: "1209", PID: "0001"},
			{Name: slave.Name(), IsUSB: true, VID: "CAFE", PID: "4011"},
		}, nil
	}

	opts := transport.Options{
		Identity:          transport.Identity{VendorID: 0xcafe, ProductID: 0x4011},
		Timeout:           time.Second,
		BaudRate:          115200,
		SerialReadTimeout: 50 * time.Millisecond,
	}
	tr, err := Backend{}.Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	require.NoError(t, tr.WriteExact([]byte{0x00}))
	buf := make([]byte, 1)
	_, err = master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, buf)
}

func TestFindPort_NoMatch(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "/dev/ttyACM0", IsUSB: true, VID: "cafe", PID: "4012"}}, nil
	}

	_, err := FindPort(transport.Identity{VendorID: 0xcafe, ProductID: 0x4011})
	require.ErrorContains(t, err, "no serial port for cafe:4011")
}
