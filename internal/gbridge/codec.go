package gbridge

import "encoding/binary"

const (
	unitHeaderLen = 3
	checksumLen   = 2

	// MaxUnitPayload bounds the declared length of a unit. Anything larger
	// is treated as a corrupt header and the context resynchronises.
	MaxUnitPayload = 0x400

	// dataAck is the response byte enqueued for every valid data unit.
	dataAck = 0x80 | byte(KindData)
)

// Library is the contract the frame codec and the router consume. Decode is
// called repeatedly against the remaining payload of one frame until it
// reports no command; every returned command consumes at least one byte.
type Library interface {
	Decode(queue []byte) (Command, bool)
	Prepare(payload []byte, pending bool) []byte
}

// Command is one decoded unit. Only Consumed, Response and the pending
// fields matter to the transfer core; the rest is for answer printing and
// save handling.
type Command struct {
	Kind    Kind
	Sub     byte
	Payload []byte

	// Consumed is the number of bytes taken from the queue passed to Decode.
	Consumed int
	// Partial is set while a unit spanning several frames is reassembled.
	Partial bool
	// Valid is false for units with a bad checksum or an impossible header.
	Valid bool

	Response []byte

	HasPending   bool
	Result       []byte
	PendingAgain bool
}

// Category returns the save table key of the command.
func (c Command) Category() Category {
	return Category{Kind: c.Kind, Sub: c.Sub}
}

// Handler processes a completed data unit and optionally returns a result
// to send back. again requests a follow-up poll for results that are not
// fully drained yet.
type Handler func(cmd Command) (result []byte, again bool, ok bool)

// Option configures a Codec.
type Option func(*Codec)

// WithHandler installs the processor for data units.
func WithHandler(h Handler) Option {
	return func(c *Codec) { c.handler = h }
}

// Codec is one decoding context. Sessions keep one per channel so that
// reassembly of split units never mixes normal and debug traffic.
type Codec struct {
	pending []byte
	handler Handler
}

// NewCodec returns an empty decoding context.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{pending: make([]byte, 0, unitHeaderLen+checksumLen+64)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode consumes bytes from queue until one unit is complete or the queue
// runs out. It reports false only for an empty queue.
func (c *Codec) Decode(queue []byte) (Command, bool) {
	if len(queue) == 0 {
		return Command{}, false
	}

	consumed := 0
	for consumed < len(queue) {
		n := min(c.need(), len(queue)-consumed)
		c.pending = append(c.pending, queue[consumed:consumed+n]...)
		consumed += n

		if len(c.pending) >= unitHeaderLen && c.size() > MaxUnitPayload {
			kind := Kind(c.pending[0])
			c.reset()
			return Command{Kind: kind, Consumed: consumed}, true
		}
		if c.need() == 0 {
			cmd := c.finish()
			cmd.Consumed = consumed
			return cmd, true
		}
	}
	return Command{Partial: true, Consumed: consumed}, true
}

// Prepare wraps payload into a unit ready to be queued. pending selects a
// poll unit, used to ask the peer again for results not yet drained.
func (c *Codec) Prepare(payload []byte, pending bool) []byte {
	if pending {
		return EncodeUnit(KindPoll, payload)
	}
	return EncodeUnit(KindData, payload)
}

// Buffered reports how many bytes of an unfinished unit are held.
func (c *Codec) Buffered() int {
	return len(c.pending)
}

func (c *Codec) size() int {
	return int(binary.BigEndian.Uint16(c.pending[1:3]))
}

func (c *Codec) need() int {
	if len(c.pending) < unitHeaderLen {
		return unitHeaderLen - len(c.pending)
	}
	return unitHeaderLen + c.size() + checksumLen - len(c.pending)
}

func (c *Codec) reset() {
	c.pending = c.pending[:0]
}

func (c *Codec) finish() Command {
	defer c.reset()

	size := c.size()
	unit := c.pending
	body := unit[unitHeaderLen : unitHeaderLen+size]
	want := binary.BigEndian.Uint16(unit[unitHeaderLen+size:])

	cmd := Command{Kind: Kind(unit[0])}
	if Checksum(unit[:unitHeaderLen+size]) != want {
		return cmd
	}

	switch cmd.Kind {
	case KindDebugInfo, KindDebugLog, KindDebugAck:
		if len(body) == 0 {
			return cmd
		}
		cmd.Sub = body[0]
		cmd.Payload = append([]byte(nil), body[1:]...)
	case KindData:
		cmd.Payload = append([]byte(nil), body...)
		cmd.Response = []byte{dataAck}
	default:
		cmd.Payload = append([]byte(nil), body...)
	}
	cmd.Valid = true

	if c.handler != nil && (cmd.Kind == KindData || cmd.Kind == KindPoll) {
		if result, again, ok := c.handler(cmd); ok {
			cmd.HasPending = true
			cmd.Result = result
			cmd.PendingAgain = again
		}
	}
	return cmd
}

// EncodeUnit lays out one unit with its length and checksum.
func EncodeUnit(kind Kind, payload []byte) []byte {
	out := make([]byte, 0, unitHeaderLen+len(payload)+checksumLen)
	out = append(out, byte(kind))
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	return binary.BigEndian.AppendUint16(out, Checksum(out))
}

// Checksum is the 16-bit byte sum used by the firmware.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}
