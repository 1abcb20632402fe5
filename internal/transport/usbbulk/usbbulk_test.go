package usbbulk

import (
	"runtime"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

func TestSelectEndpoints(t *testing.T) {
	s := gousb.InterfaceSetting{
		Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
			0x84: {Address: 0x84, Number: 4, Direction: gousb.EndpointDirectionIn},
			0x83: {Address: 0x83, Number: 3, Direction: gousb.EndpointDirectionIn},
			0x03: {Address: 0x03, Number: 3, Direction: gousb.EndpointDirectionOut},
		},
	}
	in, out, err := selectEndpoints(s)
	require.NoError(t, err)
	require.Equal(t, 3, in)
	require.Equal(t, 3, out)
}

func TestSelectEndpoints_MissingDirection(t *testing.T) {
	s := gousb.InterfaceSetting{
		Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
			0x81: {Address: 0x81, Number: 1, Direction: gousb.EndpointDirectionIn},
		},
	}
	_, _, err := selectEndpoints(s)
	require.Error(t, err)
}

func TestPickInterface(t *testing.T) {
	desc := gousb.ConfigDesc{
		Interfaces: []gousb.InterfaceDesc{
			{Number: 0, AltSettings: []gousb.InterfaceSetting{{Number: 0, Class: gousb.ClassComm}}},
			{Number: 1, AltSettings: []gousb.InterfaceSetting{{Number: 1, Class: gousb.ClassData}}},
			{Number: 2, AltSettings: []gousb.InterfaceSetting{{Number: 2, Class: gousb.ClassVendorSpec}}},
		},
	}
	n, err := pickInterface(desc, gousb.ClassData)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = pickInterface(desc, gousb.ClassComm)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = pickInterface(desc, gousb.ClassHID)
	require.Error(t, err)
}

func TestBackendKinds(t *testing.T) {
	require.Equal(t, transport.KindRawBulk, New().Kind())
	require.Equal(t, transport.KindVendorSerial, Backend{Profile: CDCProfile}.Kind())
}

func TestProfiles_DetachPolicy(t *testing.T) {
	require.Equal(t, runtime.GOOS != "windows", RawProfile.Detach)
	require.True(t, RawProfile.Reset)
	require.False(t, CDCProfile.Detach)
	require.True(t, CDCProfile.ByClass)
	require.Equal(t, gousb.ClassData, CDCProfile.Class)
}
