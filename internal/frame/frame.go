// Package frame implements the transfer envelope exchanged with the adapter:
// one header byte carrying channel flags and a payload count, followed by at
// most 63 payload bytes.
package frame

import (
	"errors"
	"fmt"

	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
)

const (
	HeaderSize = 1
	MaxPayload = 0x40 - HeaderSize
	// ReadSize is the fixed size of one inbound read.
	ReadSize = 0x40

	FlagDebug = 0x80
	FlagAck   = 0x40
	FlagsMask = FlagDebug | FlagAck
	CountMask = 0x3F
)

var ErrProtocolCorrupt = errors.New("frame: protocol corruption")

// Channel selects the decoding context and outbound queue of a frame.
type Channel int

const (
	Normal Channel = iota
	Debug
)

func (c Channel) String() string {
	if c == Debug {
		return "debug"
	}
	return "normal"
}

// Header is the first byte of a frame.
type Header byte

func (h Header) Debug() bool { return h&FlagDebug != 0 }

func (h Header) Count() int { return int(h & CountMask) }

func (h Header) Channel() Channel {
	if h.Debug() {
		return Debug
	}
	return Normal
}

// Encode builds one frame from the front of queue and returns it together
// with the number of bytes taken. An empty queue yields a one byte idle frame.
// Debug frames with payload also carry the ack flag.
func Encode(queue []byte, debug bool) ([]byte, int) {
	n := min(len(queue), MaxPayload)
	h := byte(n)
	if debug {
		h |= FlagDebug
		if n > 0 {
			h |= FlagAck
		}
	}
	out := make([]byte, 0, HeaderSize+n)
	out = append(out, h)
	return append(out, queue[:n]...), n
}

// Parse splits a received buffer into its channel and payload. The payload
// is nil for idle frames and for frames whose count exceeds what was read.
func Parse(buf []byte) (Channel, []byte) {
	if len(buf) < HeaderSize {
		return Normal, nil
	}
	h := Header(buf[0])
	n := h.Count()
	if n == 0 || n > len(buf)-HeaderSize {
		return h.Channel(), nil
	}
	return h.Channel(), buf[HeaderSize : HeaderSize+n]
}

// Decoded is one command together with the channel it arrived on.
type Decoded struct {
	Channel Channel
	Command gbridge.Command
}

// Contexts returns the decoding context for a channel.
type Contexts interface {
	Library(ch Channel) gbridge.Library
}

// Decode parses buf and runs the channel's decoding context over the payload
// until it stops producing commands. A context that consumes nothing, or
// more than what is left, corrupts the stream and aborts decoding.
func Decode(buf []byte, contexts Contexts) ([]Decoded, error) {
	ch, queue := Parse(buf)
	if len(queue) == 0 {
		return nil, nil
	}
	lib := contexts.Library(ch)

	var out []Decoded
	total := len(queue)
	for len(queue) > 0 {
		cmd, ok := lib.Decode(queue)
		if !ok {
			break
		}
		if cmd.Consumed < 1 || cmd.Consumed > len(queue) {
			return out, fmt.Errorf("%w: %s channel consumed %d of %d bytes at offset %d",
				ErrProtocolCorrupt, ch, cmd.Consumed, len(queue), total-len(queue))
		}
		queue = queue[cmd.Consumed:]
		out = append(out, Decoded{Channel: ch, Command: cmd})
	}
	return out, nil
}
