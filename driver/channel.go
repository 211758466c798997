package driver

import (
	"strings"
	"sync"
)

// Channel is the run's I/O channel: an append-only transcript of output
// chunks plus the echo of every accepted input line. Only the driver writes
// it; displays may read it from any goroutine.
type Channel struct {
	mu     sync.RWMutex
	chunks []string
	size   int
}

func NewChannel() *Channel {
	return &Channel{}
}

func (c *Channel) Append(chunk string) {
	if chunk == "" {
		return
	}
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.size += len(chunk)
	c.mu.Unlock()
}

// Echo appends line plus a terminator and returns the appended chunk.
func (c *Channel) Echo(line string) string {
	chunk := line + "\n"
	c.Append(chunk)
	return chunk
}

// Clear empties the transcript. It never touches driver state.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.chunks = nil
	c.size = 0
	c.mu.Unlock()
}

func (c *Channel) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b strings.Builder
	b.Grow(c.size)
	for _, chunk := range c.chunks {
		b.WriteString(chunk)
	}
	return b.String()
}

func (c *Channel) Chunks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.chunks...)
}

// Len is the transcript size in bytes.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}
