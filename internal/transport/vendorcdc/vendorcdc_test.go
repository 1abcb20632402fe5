//go:build !windows

package vendorcdc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

func TestOpen_Unavailable(t *testing.T) {
	b := Backend{}
	require.Equal(t, transport.KindVendorSerial, b.Kind())

	tr, err := b.Open(context.Background(), transport.Options{})
	require.Nil(t, tr)
	require.ErrorIs(t, err, transport.ErrUnavailable)
}
