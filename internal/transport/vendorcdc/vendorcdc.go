// Package vendorcdc reaches the adapter's CDC data interface when it is bound
// to a generic USB driver instead of the OS serial driver. Only Windows
// installs are set up that way; elsewhere the backend reports itself
// unavailable and discovery moves on.
package vendorcdc

import "github.com/luhtfiimanal/go-pico-bridge/internal/transport"

// Backend is the vendor serial backend.
type Backend struct{}

func (Backend) Kind() transport.Kind { return transport.KindVendorSerial }
