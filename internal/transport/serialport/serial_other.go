//go:build !linux

package serialport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

// Port drives a serial port through go.bug.st/serial.
type Port struct {
	port      serial.Port
	config    Config
	done      chan struct{}
	closeOnce sync.Once
}

// Open opens a serial port in 8N1 mode.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()

	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &Port{port: port, config: cfg, done: make(chan struct{})}, nil
}

// WriteExact writes all of b.
func (p *Port) WriteExact(b []byte) error {
	if p.closed() {
		return transport.ErrClosed
	}
	for len(b) > 0 {
		n, err := p.port.Write(b)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		b = b[n:]
	}
	return nil
}

// ReadN collects up to n bytes until the read timeout elapses.
func (p *Port) ReadN(n int) ([]byte, error) {
	if p.closed() {
		return nil, transport.ErrClosed
	}
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(p.config.ReadTimeout)
	for got < n && time.Now().Before(deadline) {
		m, err := p.port.Read(buf[got:])
		if err != nil {
			if p.closed() {
				return buf[:got], transport.ErrClosed
			}
			return buf[:got], fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			break
		}
		got += m
	}
	if got == 0 {
		return nil, transport.ErrTimeout
	}
	return buf[:got], nil
}

func (p *Port) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Close discards buffered data and closes the port. Safe to call multiple
// times.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.port.ResetInputBuffer()
		p.port.ResetOutputBuffer()
		err = p.port.Close()
	})
	return err
}
