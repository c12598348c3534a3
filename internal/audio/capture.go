package audio

import (
	"sync"
)

// Capture accumulates the binary fragments of one recording in arrival order.
// It is append-only until Reset or Take.
type Capture struct {
	chunks [][]byte
	size   int
	mu     sync.RWMutex
}

// NewCapture creates an empty capture
func NewCapture() *Capture {
	return &Capture{}
}

// Append copies chunk onto the end of the capture. Empty chunks are counted
// but add no bytes.
func (c *Capture) Append(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.chunks = append(c.chunks, cp)
	c.size += len(cp)
}

// Take returns the fragments and leaves the capture empty.
func (c *Capture) Take() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.chunks
	c.chunks = nil
	c.size = 0
	return out
}

// Len returns the total number of captured bytes
func (c *Capture) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Count returns the number of fragments appended since the last reset
func (c *Capture) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Reset discards all fragments
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chunks = nil
	c.size = 0
}

// Concat joins fragments in order into a single buffer.
func Concat(chunks [][]byte) []byte {
	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	out := make([]byte, 0, total)
	for _, ch := range chunks {
		out = append(out, ch...)
	}
	return out
}
