package main

import (
	"fmt"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/serialport"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/usbbulk"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/vendorcdc"
)

// buildBackends maps configured names to backends, keeping their order.
func buildBackends(names []string) ([]transport.Backend, error) {
	out := make([]transport.Backend, 0, len(names))
	for _, name := range names {
		kind, err := transport.ParseKind(name)
		if err != nil {
			return nil, err
		}
		switch kind {
		case transport.KindRawBulk:
			out = append(out, usbbulk.New())
		case transport.KindVendorSerial:
			out = append(out, vendorcdc.Backend{})
		case transport.KindOSSerial:
			out = append(out, serialport.Backend{})
		default:
			return nil, fmt.Errorf("backend %s has no implementation", kind)
		}
	}
	return out, nil
}
