package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/go-pico-bridge/internal/frame"
	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
	"github.com/luhtfiimanal/go-pico-bridge/internal/router"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

// DefaultPollInterval is the pause between two cycles.
const DefaultPollInterval = 10 * time.Millisecond

// Surface feeds user requests into the router at the start of a cycle.
type Surface interface {
	Drain() int
}

// Queues is the router as seen by the session.
type Queues interface {
	Router
	NextFrame() []byte
	Append(out router.Outbound)
}

// Config tunes the cycle.
type Config struct {
	PollInterval time.Duration
	// ChunkSize splits each frame write; 0 writes it whole.
	ChunkSize int
}

// Session is one claimed device from discovery to teardown.
type Session struct {
	t       transport.Transport
	queues  Queues
	control *Control
	cfg     Config

	surface Surface
	handler gbridge.Handler
	log     zerolog.Logger

	cycles    atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithSurface drains s at the start of every cycle.
func WithSurface(s Surface) Option { return func(x *Session) { x.surface = s } }

// WithHandler installs the data unit processor on both decoding contexts.
func WithHandler(h gbridge.Handler) Option { return func(x *Session) { x.handler = h } }

func WithLogger(l zerolog.Logger) Option { return func(x *Session) { x.log = l } }

// NewSession takes ownership of t. c may be shared with a signal handler.
func NewSession(t transport.Transport, q Queues, c *Control, cfg Config, opts ...Option) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if c == nil {
		c = &Control{}
	}
	s := &Session{
		t:       t,
		queues:  q,
		control: c,
		cfg:     cfg,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Control returns the session's control surface.
func (s *Session) Control() *Control { return s.control }

// Cycles returns how many I/O cycles completed.
func (s *Session) Cycles() uint64 { return s.cycles.Load() }

// Run cycles until the control is stopped, ctx is done or an error occurs.
// The worker is stopped and the transport closed before Run returns; a stop
// or cancellation returns nil.
func (s *Session) Run(ctx context.Context) error {
	var opts []gbridge.Option
	if s.handler != nil {
		opts = append(opts, gbridge.WithHandler(s.handler))
	}
	w := newWorker(s.queues, gbridge.NewCodec(opts...), gbridge.NewCodec(opts...))
	go w.run()

	err := s.loop(ctx, w)
	w.stop()
	if cerr := s.Close(); cerr != nil {
		s.log.Warn().Err(cerr).Msg("transport close failed")
	}
	if err != nil {
		s.log.Error().Err(err).Uint64("cycles", s.Cycles()).Msg("session failed")
		return err
	}
	s.log.Info().Uint64("cycles", s.Cycles()).Msg("session stopped")
	return nil
}

// Close releases the transport. Only the first call reaches it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.t.Close()
	})
	return s.closeErr
}

func (s *Session) loop(ctx context.Context, w *worker) error {
	for {
		if s.control.Stopped() || ctx.Err() != nil {
			return nil
		}
		if s.control.Paused() {
			s.sleep(ctx)
			continue
		}
		if err := s.cycle(w); err != nil {
			return err
		}
		s.cycles.Add(1)
		s.sleep(ctx)
	}
}

func (s *Session) cycle(w *worker) error {
	if s.surface != nil {
		s.surface.Drain()
	}

	out := s.queues.NextFrame()
	if err := transport.WriteChunked(s.t, out, s.cfg.ChunkSize); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	buf, err := s.t.ReadN(frame.ReadSize)
	if errors.Is(err, transport.ErrTimeout) && len(buf) == 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}

	routed, err := w.process(buf)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	s.queues.Append(routed)
	return nil
}

func (s *Session) sleep(ctx context.Context) {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
