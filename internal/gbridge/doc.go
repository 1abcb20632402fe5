// Package gbridge implements the bridge command library spoken on top of the
// frame envelope: the unit layout exchanged with the adapter firmware, the
// per-channel decoding context that reassembles units split across frames,
// and the builders for debug commands issued from the host.
//
// A unit on the wire is laid out as
//
//	[kind:1][length:2 BE][payload:length][checksum:2 BE]
//
// where checksum is the 16-bit sum of every preceding byte of the unit.
// Debug commands carried inside a DebugCommand unit have their own
// [id][data...][checksum:2 BE] layout, matching what the firmware checks.
package gbridge
