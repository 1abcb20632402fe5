// Package usbbulk is the raw bulk endpoint backend. It claims the adapter's
// protocol interface through libusb (github.com/google/gousb) and moves
// frames over its IN and OUT bulk endpoints.
package usbbulk

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gousb"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

const (
	// Switches the adapter into protocol-serving mode. On the firmware side
	// this is the CDC line state request, asserting DTR on the interface.
	requestSetLineState = 0x22
	lineStateDTR        = 0x01
	lineStateDTRRTS     = 0x03

	reqTypeStandardInterfaceOut = 0x01
	reqTypeClassInterfaceOut    = 0x21
)

// Profile describes how a device is claimed and switched on.
type Profile struct {
	Kind transport.Kind
	// ByClass picks the first interface of Class instead of the configured
	// interface number.
	ByClass bool
	Class   gousb.Class
	// Detach lets libusb detach a bound kernel driver while the interface
	// is claimed and reattach it on release.
	Detach bool
	Reset  bool
	// ModeSwitch runs once the endpoints are located.
	ModeSwitch func(dev *gousb.Device, desc gousb.ConfigDesc, intf int) error
}

// RawProfile claims the vendor interface directly.
var RawProfile = Profile{
	Kind:   transport.KindRawBulk,
	Detach: runtime.GOOS != "windows",
	Reset:  true,
	ModeSwitch: func(dev *gousb.Device, _ gousb.ConfigDesc, intf int) error {
		_, err := dev.Control(reqTypeStandardInterfaceOut, requestSetLineState, lineStateDTR, uint16(intf), nil)
		return err
	},
}

// CDCProfile claims the CDC data interface bound to a generic USB driver and
// raises DTR/RTS on its communication interface.
var CDCProfile = Profile{
	Kind:    transport.KindVendorSerial,
	ByClass: true,
	Class:   gousb.ClassData,
	ModeSwitch: func(dev *gousb.Device, desc gousb.ConfigDesc, intf int) error {
		comm, err := pickInterface(desc, gousb.ClassComm)
		if err != nil {
			return err
		}
		_, err = dev.Control(reqTypeClassInterfaceOut, requestSetLineState, lineStateDTRRTS, uint16(comm), nil)
		return err
	},
}

// Backend opens devices with a Profile.
type Backend struct {
	Profile Profile
}

// New returns the raw bulk backend.
func New() Backend { return Backend{Profile: RawProfile} }

func (b Backend) Kind() transport.Kind { return b.Profile.Kind }

func (b Backend) Open(ctx context.Context, opts transport.Options) (transport.Transport, error) {
	d, err := Open(ctx, opts, b.Profile)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Device is a claimed USB interface with its two bulk endpoints.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	timeout time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
}

// Open finds the device by identity, claims it and switches it on. Every
// partially acquired resource is released when a step fails.
func Open(ctx context.Context, opts transport.Options, p Profile) (*Device, error) {
	d := &Device{ctx: gousb.NewContext(), timeout: opts.Timeout}
	ok := false
	defer func() {
		if !ok {
			d.release()
		}
	}()

	id := opts.Identity
	dev, err := d.ctx.OpenDeviceWithVIDPID(gousb.ID(id.VendorID), gousb.ID(id.ProductID))
	if err != nil {
		return nil, fmt.Errorf("open usb device %s: %w", id, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("no usb device %s", id)
	}
	d.dev = dev
	dev.ControlTimeout = opts.Timeout

	if p.Detach {
		if err := dev.SetAutoDetach(true); err != nil {
			return nil, fmt.Errorf("detach kernel driver: %w", err)
		}
	}
	if p.Reset {
		if err := dev.Reset(); err != nil {
			return nil, fmt.Errorf("reset: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfgNum := opts.USBConfig
	if cfgNum == 0 {
		cfgNum = 1
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("set configuration %d: %w", cfgNum, err)
	}
	d.cfg = cfg

	num := opts.USBInterface
	if p.ByClass {
		if num, err = pickInterface(cfg.Desc, p.Class); err != nil {
			return nil, err
		}
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return nil, fmt.Errorf("claim interface %d: %w", num, err)
	}
	d.intf = intf

	inNum, outNum, err := selectEndpoints(intf.Setting)
	if err != nil {
		return nil, fmt.Errorf("interface %d: %w", num, err)
	}
	if d.in, err = intf.InEndpoint(inNum); err != nil {
		return nil, fmt.Errorf("in endpoint %d: %w", inNum, err)
	}
	if d.out, err = intf.OutEndpoint(outNum); err != nil {
		return nil, fmt.Errorf("out endpoint %d: %w", outNum, err)
	}

	if p.ModeSwitch != nil {
		if err := p.ModeSwitch(dev, cfg.Desc, num); err != nil {
			return nil, fmt.Errorf("mode switch: %w", err)
		}
	}

	ok = true
	return d, nil
}

// WriteExact sends p as one bulk OUT transfer.
func (d *Device) WriteExact(p []byte) error {
	if d.closed.Load() {
		return transport.ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	n, err := d.out.WriteContext(ctx, p)
	if err != nil {
		return fmt.Errorf("bulk write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("bulk write: short write %d of %d", n, len(p))
	}
	return nil
}

// ReadN performs one bulk IN transfer of at most n bytes.
func (d *Device) ReadN(n int) ([]byte, error) {
	if d.closed.Load() {
		return nil, transport.ErrClosed
	}
	buf := make([]byte, n)
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	m, err := d.in.ReadContext(ctx, buf)
	if m == 0 && (err == nil || isTimeout(ctx, err)) {
		return nil, transport.ErrTimeout
	}
	if err != nil {
		return buf[:m], fmt.Errorf("bulk read: %w", err)
	}
	return buf[:m], nil
}

// Close releases the interface, gives a detached kernel driver back and
// closes the libusb context. Safe to call multiple times.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		err = d.release()
	})
	return err
}

func (d *Device) release() error {
	if d.intf != nil {
		d.intf.Close()
	}
	var errs []error
	if d.cfg != nil {
		errs = append(errs, d.cfg.Close())
	}
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
	}
	return errors.Join(errs...)
}

func isTimeout(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, gousb.ErrorTimeout)
}

// selectEndpoints returns the lowest numbered IN and OUT endpoints of a
// setting.
func selectEndpoints(s gousb.InterfaceSetting) (in, out int, err error) {
	addrs := make([]int, 0, len(s.Endpoints))
	for addr := range s.Endpoints {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)

	in, out = -1, -1
	for _, a := range addrs {
		ep := s.Endpoints[gousb.EndpointAddress(a)]
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && in < 0:
			in = ep.Number
		case ep.Direction == gousb.EndpointDirectionOut && out < 0:
			out = ep.Number
		}
	}
	if in < 0 {
		return 0, 0, errors.New("no IN endpoint")
	}
	if out < 0 {
		return 0, 0, errors.New("no OUT endpoint")
	}
	return in, out, nil
}

// pickInterface returns the number of the first interface whose default
// setting has class c.
func pickInterface(desc gousb.ConfigDesc, c gousb.Class) (int, error) {
	for _, intf := range desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		if intf.AltSettings[0].Class == c {
			return intf.Number, nil
		}
	}
	return 0, fmt.Errorf("no interface of class %s", c)
}
