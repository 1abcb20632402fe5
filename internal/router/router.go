// Package router keeps the outbound queues of both channels and the tables
// the command surface fills in, and decides what happens to every decoded
// command: saves, printed answers, responses and pending results.
package router

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luhtfiimanal/go-pico-bridge/internal/frame"
	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
)

// Preparer wraps result bytes into library units.
type Preparer interface {
	Prepare(payload []byte, pending bool) []byte
}

// FileWriter performs the writes requested by the save table.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// FileWriterFunc adapts a function to FileWriter.
type FileWriterFunc func(path string, data []byte) error

func (f FileWriterFunc) WriteFile(path string, data []byte) error { return f(path, data) }

// OSFiles writes through the filesystem.
var OSFiles = FileWriterFunc(func(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
})

// Output receives lines meant for the user.
type Output interface {
	Print(line string)
}

type discard struct{}

func (discard) Print(string) {}

// Outbound holds the bytes produced by routing one read buffer.
type Outbound struct {
	Normal []byte
	Debug  [][]byte
}

// Empty reports whether nothing was produced.
func (o Outbound) Empty() bool {
	return len(o.Normal) == 0 && len(o.Debug) == 0
}

func (o *Outbound) add(ch frame.Channel, b []byte) {
	if len(b) == 0 {
		return
	}
	if ch == frame.Debug {
		o.Debug = append(o.Debug, split(b)...)
		return
	}
	o.Normal = append(o.Normal, b...)
}

// Router is safe for concurrent use; one mutex guards every queue and table.
type Router struct {
	mu     sync.Mutex
	normal []byte
	debug  [][]byte
	saves  map[gbridge.Category]string
	acks   map[gbridge.CommandID]bool

	prep  Preparer
	files FileWriter
	out   Output
	log   zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

func WithFileWriter(w FileWriter) Option { return func(r *Router) { r.files = w } }

func WithOutput(o Output) Option { return func(r *Router) { r.out = o } }

func WithLogger(l zerolog.Logger) Option { return func(r *Router) { r.log = l } }

// New returns an empty router.
func New(prep Preparer, opts ...Option) *Router {
	r := &Router{
		saves: make(map[gbridge.Category]string),
		acks:  make(map[gbridge.CommandID]bool),
		prep:  prep,
		files: OSFiles,
		out:   discard{},
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnqueueNormal appends bytes to the normal queue.
func (r *Router) EnqueueNormal(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normal = append(r.normal, b...)
}

// EnqueueDebug queues the entries of one debug command and records whether
// its acknowledgment is expected.
func (r *Router) EnqueueDebug(id gbridge.CommandID, entries [][]byte, ackWanted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if len(e) > 0 {
			r.debug = append(r.debug, e)
		}
	}
	r.acks[id] = ackWanted
}

// SetSavePath records where payloads of a category are written.
func (r *Router) SetSavePath(cat gbridge.Category, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[cat] = path
}

// SavePath returns the destination recorded for a category.
func (r *Router) SavePath(cat gbridge.Category) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.saves[cat]
	return p, ok
}

// AckWanted reports whether an acknowledgment of id is expected.
func (r *Router) AckWanted(id gbridge.CommandID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acks[id]
}

// Pending returns the queued normal bytes and debug entries.
func (r *Router) Pending() (normal, debug int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.normal), len(r.debug)
}

// NextFrame takes the frame to send this cycle. The normal queue always has
// priority; a debug entry goes out only when it is empty, and an idle frame
// when both are.
func (r *Router) NextFrame() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.normal) > 0 {
		buf, n := frame.Encode(r.normal, false)
		r.normal = r.normal[n:]
		if len(r.normal) == 0 {
			r.normal = nil
		}
		return buf
	}
	if len(r.debug) > 0 {
		entry := r.debug[0]
		buf, n := frame.Encode(entry, true)
		if n == len(entry) {
			r.debug[0] = nil
			r.debug = r.debug[1:]
		} else {
			r.debug[0] = entry[n:]
		}
		return buf
	}
	buf, _ := frame.Encode(nil, false)
	return buf
}

// Route handles one decoded command and returns what it asks to send. Save
// table and ack table are only consulted for debug traffic.
func (r *Router) Route(ch frame.Channel, cmd gbridge.Command) Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out Outbound
	if cmd.Partial || !cmd.Valid {
		return out
	}

	if ch == frame.Debug {
		r.save(cmd)
		r.answer(cmd)
	}

	out.add(ch, cmd.Response)
	if cmd.HasPending {
		out.add(ch, r.prep.Prepare(cmd.Result, false))
		if cmd.PendingAgain {
			out.add(ch, r.prep.Prepare(nil, true))
		}
	}
	return out
}

// Append queues routed bytes behind what is already waiting.
func (r *Router) Append(out Outbound) {
	if out.Empty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normal = append(r.normal, out.Normal...)
	r.debug = append(r.debug, out.Debug...)
}

func (r *Router) save(cmd gbridge.Command) {
	cat := cmd.Category()
	path, ok := r.saves[cat]
	if !ok {
		return
	}
	if err := r.files.WriteFile(path, cmd.Payload); err != nil {
		r.log.Warn().Err(err).Str("category", cat.String()).Str("path", path).Msg("save failed")
		r.out.Print(fmt.Sprintf("Couldn't save to %s: %v", path, err))
		return
	}
	r.log.Debug().Str("category", cat.String()).Str("path", path).Int("bytes", len(cmd.Payload)).Msg("saved")
	r.out.Print(fmt.Sprintf("Saved %d bytes to %s", len(cmd.Payload), path))
}

func (r *Router) answer(cmd gbridge.Command) {
	if cmd.Kind == gbridge.KindDebugAck {
		id := gbridge.CommandID(cmd.Sub)
		if r.acks[id] {
			r.out.Print("ACK: " + id.String())
		} else {
			r.log.Debug().Stringer("command", id).Msg("unrequested ack")
		}
		return
	}
	if line := gbridge.Describe(cmd); line != "" {
		r.out.Print(line)
	}
}

func split(b []byte) [][]byte {
	var out [][]byte
	for len(b) > frame.MaxPayload {
		out = append(out, b[:frame.MaxPayload])
		b = b[frame.MaxPayload:]
	}
	return append(out, b)
}
