//go:build !windows

package vendorcdc

import (
	"context"
	"fmt"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

func (Backend) Open(_ context.Context, _ transport.Options) (transport.Transport, error) {
	return nil, fmt.Errorf("vendor serial driver: %w", transport.ErrUnavailable)
}
