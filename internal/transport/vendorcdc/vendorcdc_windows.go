//go:build windows

package vendorcdc

import (
	"context"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport/usbbulk"
)

func (Backend) Open(ctx context.Context, opts transport.Options) (transport.Transport, error) {
	return usbbulk.Backend{Profile: usbbulk.CDCProfile}.Open(ctx, opts)
}
