// Package pipeline drives a claimed transport: one frame out and one read in
// per cycle, with decoding handed to a worker goroutine in lock-step.
package pipeline

import "sync/atomic"

// Control is the pause/stop surface of a running session. It belongs to the
// caller; the session only polls it once per cycle.
type Control struct {
	paused     atomic.Bool
	terminated atomic.Bool
}

// Pause suspends I/O from the next cycle on.
func (c *Control) Pause() { c.paused.Store(true) }

// Resume undoes Pause.
func (c *Control) Resume() { c.paused.Store(false) }

// Stop ends the session. It cannot be undone.
func (c *Control) Stop() { c.terminated.Store(true) }

func (c *Control) Paused() bool { return c.paused.Load() }

func (c *Control) Stopped() bool { return c.terminated.Load() }
