package resource

import (
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// Log is a [Recorder] that only remembers what it was asked to record.
// It backs dry runs and tests that assert on the command stream.
type Log struct {
	mu       sync.Mutex
	encoder  hal.CommandEncoder
	barriers []Barrier
	clears   []*Texture
}

// NewLog returns a Log that hands out enc to nodes. enc may be nil.
func NewLog(enc hal.CommandEncoder) *Log {
	return &Log{encoder: enc}
}

// Barriers implements Recorder.
func (l *Log) Barriers(barriers []Barrier) {
	l.mu.Lock()
	l.barriers = append(l.barriers, barriers...)
	l.mu.Unlock()
}

// ClearTexture implements Recorder.
func (l *Log) ClearTexture(t *Texture) {
	l.mu.Lock()
	l.clears = append(l.clears, t)
	l.mu.Unlock()
}

// Encoder implements Recorder.
func (l *Log) Encoder() hal.CommandEncoder { return l.encoder }

// Recorded returns a copy of every barrier recorded so far.
func (l *Log) Recorded() []Barrier {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Barrier, len(l.barriers))
	copy(out, l.barriers)
	return out
}

// Cleared returns the textures cleared so far, in order.
func (l *Log) Cleared() []*Texture {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Texture, len(l.clears))
	copy(out, l.clears)
	return out
}

// Reset drops everything recorded.
func (l *Log) Reset() {
	l.mu.Lock()
	l.barriers = l.barriers[:0]
	l.clears = l.clears[:0]
	l.mu.Unlock()
}
