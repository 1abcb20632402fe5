// Package console is the text command surface: a line source, the request
// grammar, and the interpreter that turns requests into queued debug
// commands and save destinations.
package console

import (
	"bufio"
	"io"
	"sync"
)

// Source reads lines from r in the background and hands them out in
// batches.
type Source struct {
	mu    sync.Mutex
	lines []string
	err   error
	done  chan struct{}
}

// NewSource starts reading r. The goroutine ends at EOF or on a read error.
func NewSource(r io.Reader) *Source {
	s := &Source{done: make(chan struct{})}
	go s.run(r)
	return s
}

func (s *Source) run(r io.Reader) {
	defer close(s.done)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.mu.Lock()
		s.lines = append(s.lines, sc.Text())
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.err = sc.Err()
	s.mu.Unlock()
}

// Drain returns the lines read since the previous call.
func (s *Source) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.lines
	s.lines = nil
	return out
}

// Done is closed once the reader is exhausted.
func (s *Source) Done() <-chan struct{} { return s.done }

// Err returns the read error that ended the source, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
