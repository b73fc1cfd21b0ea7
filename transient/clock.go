package transient

import "sync/atomic"

// Clock tells the allocator which frame is being recorded and how many
// frames the GPU may still be consuming.
type Clock interface {
	FrameNumber() uint64
	FramesInFlight() uint64
}

// FrameClock is a Clock driven by the application's frame loop.
type FrameClock struct {
	frame    atomic.Uint64
	inFlight uint64
}

// NewFrameClock returns a clock at frame 0. framesInFlight defaults to
// DefaultFramesInFlight when zero.
func NewFrameClock(framesInFlight uint64) *FrameClock {
	if framesInFlight == 0 {
		framesInFlight = DefaultFramesInFlight
	}
	return &FrameClock{inFlight: framesInFlight}
}

// FrameNumber returns the current frame.
func (c *FrameClock) FrameNumber() uint64 { return c.frame.Load() }

// FramesInFlight returns the frames-in-flight window.
func (c *FrameClock) FramesInFlight() uint64 { return c.inFlight }

// Advance starts the next frame and returns its number.
func (c *FrameClock) Advance() uint64 { return c.frame.Add(1) }
