package console

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
	"github.com/luhtfiimanal/go-pico-bridge/internal/router"
)

// Queue is the part of the router the interpreter writes to.
type Queue interface {
	EnqueueDebug(id gbridge.CommandID, entries [][]byte, ackWanted bool)
	SetSavePath(cat gbridge.Category, path string)
}

// Interpreter applies parsed requests.
type Interpreter struct {
	q        Queue
	out      router.Output
	readFile func(path string) ([]byte, error)
	log      zerolog.Logger
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithReadFile replaces the file reader used by Load requests.
func WithReadFile(f func(path string) ([]byte, error)) InterpreterOption {
	return func(i *Interpreter) { i.readFile = f }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) InterpreterOption {
	return func(i *Interpreter) { i.log = l }
}

// NewInterpreter returns an interpreter writing to q and reporting to out.
func NewInterpreter(q Queue, out router.Output, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		q:        q,
		out:      out,
		readFile: os.ReadFile,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Apply turns one request into queued debug entries or a save destination.
func (i *Interpreter) Apply(req Request) {
	switch r := req.(type) {
	case Query:
		i.send(r.ID, nil)
	case Toggle:
		v := byte(0)
		if r.On {
			v = 1
		}
		i.send(r.ID, []byte{v})
	case SetDevice:
		i.send(gbridge.UpdateDevice, gbridge.EncodeDevice(r.Adapter, r.Unmetered))
	case SetUnsigned:
		i.send(r.ID, binary.BigEndian.AppendUint16(nil, r.Value))
	case SetToken:
		i.send(gbridge.UpdateRelayToken, gbridge.EncodeRelayToken(r.Token))
	case SetAddress:
		i.send(r.ID, gbridge.EncodeAddress(r.Addr, r.Port))
	case Save:
		if r.Query != 0 {
			i.send(r.Query, nil)
		}
		if r.Path != "" {
			i.q.SetSavePath(r.Category, r.Path)
			i.log.Debug().Str("category", r.Category.String()).Str("path", r.Path).Msg("save requested")
		}
	case Load:
		data, err := i.readFile(r.Path)
		if err != nil {
			i.out.Print(fmt.Sprintf("Couldn't read %s: %v", r.Path, err))
			return
		}
		i.send(r.ID, data)
	}
}

func (i *Interpreter) send(id gbridge.CommandID, data []byte) {
	entries, ack := gbridge.DebugCommand(id, data)
	if len(entries) == 0 {
		i.log.Warn().Stringer("command", id).Int("bytes", len(data)).Msg("debug command dropped")
		return
	}
	i.q.EnqueueDebug(id, entries, ack)
	i.log.Debug().Stringer("command", id).Int("entries", len(entries)).Bool("ack", ack).Msg("debug command queued")
}

// Surface drains a line source through the grammar into an interpreter.
type Surface struct {
	src    *Source
	interp *Interpreter
	log    zerolog.Logger
}

// NewSurface joins a source and an interpreter.
func NewSurface(src *Source, interp *Interpreter) *Surface {
	return &Surface{src: src, interp: interp, log: interp.log}
}

// Drain applies every line read since the last call and returns how many
// were accepted. Malformed lines are dropped.
func (s *Surface) Drain() int {
	n := 0
	for _, line := range s.src.Drain() {
		req, ok := Parse(line)
		if !ok {
			s.log.Debug().Str("line", line).Msg("request dropped")
			continue
		}
		s.interp.Apply(req)
		n++
	}
	return n
}
