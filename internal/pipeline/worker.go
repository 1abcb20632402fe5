package pipeline

import (
	"errors"

	"github.com/luhtfiimanal/go-pico-bridge/internal/frame"
	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
	"github.com/luhtfiimanal/go-pico-bridge/internal/router"
)

// ErrWorkerStopped is returned when a buffer is handed to a worker that has
// already exited.
var ErrWorkerStopped = errors.New("pipeline: decode worker stopped")

// Router is what the worker routes decoded commands through.
type Router interface {
	Route(ch frame.Channel, cmd gbridge.Command) router.Outbound
}

type result struct {
	out router.Outbound
	err error
}

// worker owns one decoding context per channel. Requests and replies travel
// over unbuffered channels so exactly one buffer is in flight.
type worker struct {
	contexts [2]gbridge.Library
	router   Router

	requests chan []byte
	replies  chan result
	quit     chan struct{}
	done     chan struct{}
}

func newWorker(r Router, normal, debug gbridge.Library) *worker {
	w := &worker{
		router:   r,
		requests: make(chan []byte),
		replies:  make(chan result),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.contexts[frame.Normal] = normal
	w.contexts[frame.Debug] = debug
	return w
}

// Library implements frame.Contexts.
func (w *worker) Library(ch frame.Channel) gbridge.Library {
	return w.contexts[ch]
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case buf := <-w.requests:
			select {
			case w.replies <- w.decode(buf):
			case <-w.quit:
				return
			}
		case <-w.quit:
			return
		}
	}
}

func (w *worker) decode(buf []byte) result {
	decoded, err := frame.Decode(buf, w)
	if err != nil {
		return result{err: err}
	}
	var out router.Outbound
	for _, d := range decoded {
		o := w.router.Route(d.Channel, d.Command)
		out.Normal = append(out.Normal, o.Normal...)
		out.Debug = append(out.Debug, o.Debug...)
	}
	return result{out: out}
}

// process hands buf to the worker and waits for the routed result.
func (w *worker) process(buf []byte) (router.Outbound, error) {
	select {
	case w.requests <- buf:
	case <-w.done:
		return router.Outbound{}, ErrWorkerStopped
	}
	select {
	case r := <-w.replies:
		return r.out, r.err
	case <-w.done:
		return router.Outbound{}, ErrWorkerStopped
	}
}

// stop ends the worker and waits for it to exit.
func (w *worker) stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.done
}
