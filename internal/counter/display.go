package counter

import (
	"fmt"
	"io"
	"sync"
)

// TextDisplay renders counter frames as lines of text, one per frame:
// "cart: 3", or "cart: 4 (+1)" for an optimistic increment.
type TextDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextDisplay creates a display writing to w.
func NewTextDisplay(w io.Writer) *TextDisplay {
	return &TextDisplay{w: w}
}

// Render writes one line for f.
func (d *TextDisplay) Render(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f.Delta != 0 {
		fmt.Fprintf(d.w, "cart: %d (%+d)\n", f.Count, f.Delta)
		return
	}
	fmt.Fprintf(d.w, "cart: %d\n", f.Count)
}
