// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"sync"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

// Fake records writes and serves scripted reads. When the script runs out,
// ReadN reports transport.ErrTimeout like an idle device.
type Fake struct {
	mu       sync.Mutex
	writes   [][]byte
	reads    [][]byte
	closes   int
	WriteErr error
	ReadErr  error
	// OnRead is called before each read with the read count so far.
	OnRead func(n int)
	nreads int
}

// Script queues buffers returned by successive reads.
func (f *Fake) Script(bufs ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, bufs...)
}

func (f *Fake) WriteExact(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		return transport.ErrClosed
	}
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *Fake) ReadN(n int) ([]byte, error) {
	f.mu.Lock()
	f.nreads++
	hook, count := f.OnRead, f.nreads
	f.mu.Unlock()
	if hook != nil {
		hook(count)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		return nil, transport.ErrClosed
	}
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if len(f.reads) == 0 {
		return nil, transport.ErrTimeout
	}
	buf := f.reads[0]
	f.reads = f.reads[1:]
	if len(buf) > n {
		buf = buf[:n]
	}
	return buf, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// Writes returns a copy of every write so far.
func (f *Fake) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// Reads returns how many reads were issued.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nreads
}

// Closes returns how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
