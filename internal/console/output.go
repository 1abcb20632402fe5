package console

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Output prints user-facing lines to a writer, one Print per line.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput returns an Output writing to w.
func NewOutput(w io.Writer) *Output { return &Output{w: w} }

// Stdout returns an Output on the process standard output.
func Stdout() *Output { return NewOutput(os.Stdout) }

func (o *Output) Print(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, line)
}
