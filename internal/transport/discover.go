package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Backend opens a device through one kind of hardware access. Any error
// from Open means the backend is not usable for this device right now.
type Backend interface {
	Kind() Kind
	Open(ctx context.Context, opts Options) (Transport, error)
}

// Attempt records why a backend was skipped.
type Attempt struct {
	Kind Kind
	Err  error
}

// NotFoundError lists every backend tried. It matches ErrNotFound.
type NotFoundError struct {
	Identity Identity
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no device %s found", e.Identity)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Kind, a.Err)
	}
	return b.String()
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Unavailable lists the backends that could not run at all on this build.
func (e *NotFoundError) Unavailable() []Kind {
	var out []Kind
	for _, a := range e.Attempts {
		if errors.Is(a.Err, ErrUnavailable) {
			out = append(out, a.Kind)
		}
	}
	return out
}

// Discover tries the backends in order and returns the first transport that
// opens. A failing backend never stops discovery.
func Discover(ctx context.Context, backends []Backend, opts Options, log zerolog.Logger) (Transport, Kind, error) {
	nf := &NotFoundError{Identity: opts.Identity}
	for _, b := range backends {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		t, err := b.Open(ctx, opts)
		if err == nil && t == nil {
			err = errors.New("backend returned no transport")
		}
		if err != nil {
			log.Debug().Stringer("backend", b.Kind()).Err(err).Msg("backend skipped")
			nf.Attempts = append(nf.Attempts, Attempt{Kind: b.Kind(), Err: err})
			continue
		}
		log.Info().Stringer("backend", b.Kind()).Stringer("device", opts.Identity).Msg("device claimed")
		return t, b.Kind(), nil
	}
	return nil, 0, nf
}
