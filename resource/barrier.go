package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BarrierKind identifies the synchronization a [Barrier] expresses.
type BarrierKind uint8

const (
	// BarrierTransition moves a resource between usage states.
	BarrierTransition BarrierKind = iota
	// BarrierAliasing hands heap memory from one resource to another.
	BarrierAliasing
	// BarrierUAV orders two storage accesses to the same resource.
	BarrierUAV
)

// String returns the barrier kind name.
func (k BarrierKind) String() string {
	switch k {
	case BarrierTransition:
		return "Transition"
	case BarrierAliasing:
		return "Aliasing"
	case BarrierUAV:
		return "UAV"
	default:
		return fmt.Sprintf("BarrierKind(%d)", k)
	}
}

// Barrier is one synchronization command for the recorder.
//
// For transitions exactly one of the buffer or texture usage pairs is
// meaningful, depending on the resource kind. For aliasing barriers
// Before is the resource that previously owned the memory, or nil when the
// allocator could not identify it.
type Barrier struct {
	Kind     BarrierKind
	Resource Resource
	Before   Resource

	OldBufferUsage gputypes.BufferUsage
	NewBufferUsage gputypes.BufferUsage

	OldTextureUsage gputypes.TextureUsage
	NewTextureUsage gputypes.TextureUsage
}

// String formats the barrier for logs and test failures.
func (b Barrier) String() string {
	name := "<nil>"
	if b.Resource != nil {
		name = b.Resource.Label()
	}
	switch b.Kind {
	case BarrierAliasing:
		before := "<nil>"
		if b.Before != nil {
			before = b.Before.Label()
		}
		return fmt.Sprintf("Aliasing(%s -> %s)", before, name)
	case BarrierUAV:
		return fmt.Sprintf("UAV(%s)", name)
	}
	if b.Resource != nil && b.Resource.Kind() == KindTexture {
		return fmt.Sprintf("Transition(%s %s -> %s)", name, TextureUsageName(b.OldTextureUsage), TextureUsageName(b.NewTextureUsage))
	}
	return fmt.Sprintf("Transition(%s %s -> %s)", name, BufferUsageName(b.OldBufferUsage), BufferUsageName(b.NewBufferUsage))
}
