// Package transport defines the uniform contract the pipeline drives and the
// ordered discovery across the hardware backends that implement it.
package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned by ReadN when nothing arrived in time. An idle
	// device produces it on every poll; it is not a failure.
	ErrTimeout = errors.New("transport: read timeout")

	// ErrNotFound is matched by the error Discover returns when no backend
	// could claim a device.
	ErrNotFound = errors.New("transport: no device found")

	// ErrUnavailable reports a backend that cannot run on this platform or
	// build.
	ErrUnavailable = errors.New("transport: backend unavailable")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("transport: closed")
)

// Transport owns one claimed device. Close releases it exactly once and is
// safe to call again.
type Transport interface {
	// WriteExact sends p in one write.
	WriteExact(p []byte) error
	// ReadN reads at most n bytes, waiting no longer than the configured
	// timeout. It returns ErrTimeout when no byte arrived.
	ReadN(n int) ([]byte, error)
	Close() error
}

// WriteChunked sends p as consecutive writes of at most chunk bytes; the
// final partial chunk goes out as is. chunk <= 0 sends p in one write.
func WriteChunked(t Transport, p []byte, chunk int) error {
	if chunk <= 0 || chunk >= len(p) {
		return t.WriteExact(p)
	}
	for off := 0; off < len(p); off += chunk {
		end := min(off+chunk, len(p))
		if err := t.WriteExact(p[off:end]); err != nil {
			return fmt.Errorf("write chunk at %d: %w", off, err)
		}
	}
	return nil
}

// Kind names one of the closed set of backends.
type Kind int

const (
	KindRawBulk Kind = iota
	KindVendorSerial
	KindOSSerial
)

func (k Kind) String() string {
	switch k {
	case KindRawBulk:
		return "usb"
	case KindVendorSerial:
		return "vendor"
	case KindOSSerial:
		return "serial"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configured backend name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "usb":
		return KindRawBulk, nil
	case "vendor":
		return KindVendorSerial, nil
	case "serial":
		return KindOSSerial, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", name)
	}
}

// Identity matches the physical device on every backend.
type Identity struct {
	VendorID  uint16
	ProductID uint16
}

func (id Identity) String() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// Options are shared by every backend's Open.
type Options struct {
	Identity Identity
	// Timeout bounds every blocking call on the opened transport.
	Timeout time.Duration

	USBConfig    int
	USBInterface int

	BaudRate          int
	SerialReadTimeout time.Duration
}
