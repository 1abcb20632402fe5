package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-pico-bridge/internal/frame"
	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
	"github.com/luhtfiimanal/go-pico-bridge/internal/router"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/transporttest"
)

const testPoll = time.Millisecond

type lines struct {
	mu sync.Mutex
	l  []string
}

func (o *lines) Print(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.l = append(o.l, s)
}

func (o *lines) get() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.l...)
}

func normalFrame(unit []byte) []byte {
	return append([]byte{byte(len(unit))}, unit...)
}

func debugFrame(unit []byte) []byte {
	return append([]byte{frame.FlagDebug | byte(len(unit))}, unit...)
}

// stopAfter stops c when the nth read is about to be issued.
func stopAfter(f *transporttest.Fake, c *Control, n int) {
	f.OnRead = func(count int) {
		if count >= n {
			c.Stop()
		}
	}
}

func runSession(t *testing.T, s *Session) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestRun_IdleCycles(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	stopAfter(f, c, 3)
	r := router.New(gbridge.NewCodec())

	err := runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll}))
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x00}, {0x00}, {0x00}}, f.Writes())
	require.Equal(t, 1, f.Closes())
}

func TestRun_ResponseIsSentNextCycle(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	f.Script(normalFrame(gbridge.EncodeUnit(gbridge.KindData, []byte{1, 2, 3})))
	stopAfter(f, c, 2)
	r := router.New(gbridge.NewCodec())

	require.NoError(t, runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll})))
	require.Equal(t, [][]byte{{0x00}, {0x01, 0x81}}, f.Writes())
}

func TestRun_HandlerResultIsPrepared(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	f.Script(normalFrame(gbridge.EncodeUnit(gbridge.KindData, []byte{0x10})))
	stopAfter(f, c, 2)
	r := router.New(gbridge.NewCodec())

	handler := func(cmd gbridge.Command) ([]byte, bool, bool) {
		return []byte{0x20}, false, true
	}
	s := NewSession(f, r, c, Config{PollInterval: testPoll}, WithHandler(handler))
	require.NoError(t, runSession(t, s))

	result := gbridge.EncodeUnit(gbridge.KindData, []byte{0x20})
	want := append([]byte{byte(1 + len(result)), 0x81}, result...)
	require.Equal(t, want, f.Writes()[1])
}

func TestRun_DebugAckIsPrinted(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	out := &lines{}
	r := router.New(gbridge.NewCodec(), router.WithOutput(out))
	entries, ack := gbridge.DebugCommand(gbridge.Start, nil)
	r.EnqueueDebug(gbridge.Start, entries, ack)

	f.Script(debugFrame(gbridge.EncodeUnit(gbridge.KindDebugAck, []byte{byte(gbridge.Start)})))
	stopAfter(f, c, 2)

	require.NoError(t, runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll})))
	first, _ := frame.Encode(entries[0], true)
	require.Equal(t, first, f.Writes()[0])
	require.Equal(t, []string{"ACK: START"}, out.get())
}

func TestRun_NormalHasPriorityOverDebug(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	r := router.New(gbridge.NewCodec())
	normal := make([]byte, 70)
	r.EnqueueNormal(normal)
	r.EnqueueDebug(gbridge.Status, [][]byte{{0xD0}}, false)
	stopAfter(f, c, 4)

	require.NoError(t, runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll})))
	w := f.Writes()
	require.Len(t, w, 4)
	require.Equal(t, byte(63), w[0][0])
	require.Equal(t, byte(7), w[1][0])
	require.Equal(t, []byte{0xC1, 0xD0}, w[2])
	require.Equal(t, []byte{0x00}, w[3])
}

func TestRun_ChunkedWrites(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	r := router.New(gbridge.NewCodec())
	r.EnqueueNormal([]byte{1, 2, 3, 4, 5})
	stopAfter(f, c, 1)

	require.NoError(t, runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll, ChunkSize: 4})))
	require.Equal(t, [][]byte{{0x05, 1, 2, 3}, {4, 5}}, f.Writes())
}

func TestRun_PausedDoesNoIO(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	c.Pause()
	r := router.New(gbridge.NewCodec())
	s := NewSession(f, r, c, Config{PollInterval: testPoll})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	time.Sleep(30 * time.Millisecond)
	require.Zero(t, f.Reads())
	require.Empty(t, f.Writes())

	c.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("paused session ignored stop")
	}
	require.Equal(t, 1, f.Closes())
	require.Zero(t, s.Cycles())
}

func TestRun_ContextCancelStops(t *testing.T) {
	f := &transporttest.Fake{}
	r := router.New(gbridge.NewCodec())
	s := NewSession(f, r, nil, Config{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	f.OnRead = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session ignored cancellation")
	}
	require.Equal(t, 1, f.Closes())
}

func TestRun_ReadErrorTearsDown(t *testing.T) {
	boom := errors.New("device gone")
	f := &transporttest.Fake{ReadErr: boom}
	r := router.New(gbridge.NewCodec())
	s := NewSession(f, r, nil, Config{PollInterval: testPoll})

	err := runSession(t, s)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, f.Closes())

	require.NoError(t, s.Close())
	require.Equal(t, 1, f.Closes())
}

func TestRun_WriteErrorTearsDown(t *testing.T) {
	boom := errors.New("pipe stalled")
	f := &transporttest.Fake{WriteErr: boom}
	r := router.New(gbridge.NewCodec())

	err := runSession(t, NewSession(f, r, nil, Config{PollInterval: testPoll}))
	require.ErrorIs(t, err, boom)
	require.Zero(t, f.Reads())
	require.Equal(t, 1, f.Closes())
}

type countSurface struct{ n atomic.Int32 }

func (s *countSurface) Drain() int {
	s.n.Add(1)
	return 0
}

func TestRun_SurfaceDrainedEachCycle(t *testing.T) {
	f := &transporttest.Fake{}
	c := &Control{}
	stopAfter(f, c, 3)
	surface := &countSurface{}
	r := router.New(gbridge.NewCodec())

	require.NoError(t, runSession(t, NewSession(f, r, c, Config{PollInterval: testPoll}, WithSurface(surface))))
	require.Equal(t, int32(3), surface.n.Load())
}

type stuckLibrary struct{}

func (stuckLibrary) Decode([]byte) (gbridge.Command, bool) { return gbridge.Command{Valid: true}, true }

func (stuckLibrary) Prepare([]byte, bool) []byte { return nil }

func TestWorker_CorruptionPropagates(t *testing.T) {
	r := router.New(gbridge.NewCodec())
	w := newWorker(r, stuckLibrary{}, stuckLibrary{})
	go w.run()
	defer w.stop()

	_, err := w.process([]byte{0x02, 0xAA, 0xBB})
	require.ErrorIs(t, err, frame.ErrProtocolCorrupt)
}

func TestWorker_StoppedWorkerRejects(t *testing.T) {
	r := router.New(gbridge.NewCodec())
	w := newWorker(r, gbridge.NewCodec(), gbridge.NewCodec())
	go w.run()
	w.stop()
	w.stop()

	_, err := w.process([]byte{0x00})
	require.ErrorIs(t, err, ErrWorkerStopped)
}

func TestWorker_ContextsAreSeparate(t *testing.T) {
	r := router.New(gbridge.NewCodec())
	w := newWorker(r, gbridge.NewCodec(), gbridge.NewCodec())
	go w.run()
	defer w.stop()

	unit := gbridge.EncodeUnit(gbridge.KindData, []byte{7})
	// Half a unit on the debug channel must not disturb the normal one.
	out, err := w.process(debugFrame(unit[:3]))
	require.NoError(t, err)
	require.True(t, out.Empty())

	out, err = w.process(normalFrame(unit))
	require.NoError(t, err)
	require.Equal(t, []byte{0x81}, out.Normal)
	require.Empty(t, out.Debug)

	out, err = w.process(debugFrame(unit[3:]))
	require.NoError(t, err)
	require.Empty(t, out.Normal)
	require.Equal(t, [][]byte{{0x81}}, out.Debug)
}

func TestControl(t *testing.T) {
	var c Control
	require.False(t, c.Paused())
	c.Pause()
	require.True(t, c.Paused())
	c.Resume()
	require.False(t, c.Paused())
	c.Stop()
	require.True(t, c.Stopped())
}

var _ Queues = (*router.Router)(nil)
var _ transport.Transport = (*transporttest.Fake)(nil)
