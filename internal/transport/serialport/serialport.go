package serialport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device       string
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 115200
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// Backend finds the adapter among the serial ports of the system.
type Backend struct{}

func (Backend) Kind() transport.Kind { return transport.KindOSSerial }

func (Backend) Open(ctx context.Context, opts transport.Options) (transport.Transport, error) {
	name, err := FindPort(opts.Identity)
	if err != nil {
		return nil, err
	}
	p, err := Open(Config{
		Device:       name,
		BaudRate:     opts.BaudRate,
		ReadTimeout:  opts.SerialReadTimeout,
		WriteTimeout: opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindPort returns the name of the first USB serial port matching id.
func FindPort(id transport.Identity) (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("list ports: %w", err)
	}
	vid := fmt.Sprintf("%04x", id.VendorID)
	pid := fmt.Sprintf("%04x", id.ProductID)
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no serial port for %s", id)
}
