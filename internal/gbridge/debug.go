package gbridge

import (
	"encoding/binary"
	"net/netip"
)

const (
	// maxEntry is the largest debug entry that still fits one frame.
	maxEntry = 63

	debugOverhead = unitHeaderLen + checksumLen + 1 + checksumLen

	// MaxDebugData is the largest data block one debug command carries.
	MaxDebugData = maxEntry - debugOverhead

	eepromChunkHeader = 3

	// EEPROMSize is the size of the adapter configuration image.
	EEPROMSize = 0x200

	// RelayTokenSize is the length of a relay token.
	RelayTokenSize = 0x10
)

// DebugCommand builds the frame-ready entries for one debug command and
// reports whether the firmware acknowledges it. UpdateEEPROM data is split
// into offset-tagged pieces; any other command must fit a single entry or
// nil is returned.
func DebugCommand(id CommandID, data []byte) ([][]byte, bool) {
	if id == UpdateEEPROM {
		return eepromEntries(data), acked[id]
	}
	if len(data) > MaxDebugData {
		return nil, false
	}
	return [][]byte{debugEntry(id, data)}, acked[id]
}

func debugEntry(id CommandID, data []byte) []byte {
	body := make([]byte, 0, 1+len(data)+checksumLen)
	body = append(body, byte(id))
	body = append(body, data...)
	body = binary.BigEndian.AppendUint16(body, Checksum(body))
	return EncodeUnit(KindDebugCommand, body)
}

func eepromEntries(data []byte) [][]byte {
	if len(data) > EEPROMSize {
		data = data[:EEPROMSize]
	}
	const chunk = MaxDebugData - eepromChunkHeader

	var entries [][]byte
	offset := 0
	for {
		end := min(offset+chunk, len(data))
		done := byte(0)
		if end == len(data) {
			done = 1
		}
		piece := make([]byte, 0, eepromChunkHeader+end-offset)
		piece = binary.BigEndian.AppendUint16(piece, uint16(offset))
		piece = append(piece, done)
		piece = append(piece, data[offset:end]...)
		entries = append(entries, debugEntry(UpdateEEPROM, piece))
		if done == 1 {
			return entries
		}
		offset = end
	}
}

// Address types as read by the firmware.
const (
	AddrNone byte = 0
	AddrIPv4 byte = 1
	AddrIPv6 byte = 2
)

// EncodeAddress lays out a network address as [type][port:2 BE][host].
// An invalid addr encodes the "no address" marker.
func EncodeAddress(addr netip.Addr, port uint16) []byte {
	if !addr.IsValid() {
		return []byte{AddrNone}
	}
	typ := AddrIPv6
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		typ = AddrIPv4
	}
	out := []byte{typ}
	out = binary.BigEndian.AppendUint16(out, port)
	return append(out, addr.AsSlice()...)
}

// EncodeRelayToken lays out a relay token update; nil clears the token.
func EncodeRelayToken(token *[RelayTokenSize]byte) []byte {
	if token == nil {
		return []byte{0}
	}
	return append([]byte{1}, token[:]...)
}

// Adapter is the emulated adapter model.
type Adapter byte

const (
	AdapterBlue   Adapter = 8
	AdapterYellow Adapter = 9
	AdapterGreen  Adapter = 10
	AdapterRed    Adapter = 11

	unmeteredBit = 0x80
)

// EncodeDevice lays out the device setting byte.
func EncodeDevice(a Adapter, unmetered bool) []byte {
	v := byte(a) &^ unmeteredBit
	if unmetered {
		v |= unmeteredBit
	}
	return []byte{v}
}
