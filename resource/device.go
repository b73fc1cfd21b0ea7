package resource

import (
	"errors"

	"github.com/gogpu/wgpu/hal"
)

// ErrUnsupportedFormat is returned when a texture format has no known
// block size and cannot be placed in a heap.
var ErrUnsupportedFormat = errors.New("resource: unsupported texture format")

// Heap is a block of device memory placed resources are created in.
type Heap interface {
	Label() string
	Size() uint64
}

// Device creates and destroys placed resources.
//
// Implementations must not require offsets to be free of other live
// resources; the transient allocator deliberately places resources over
// memory that earlier resources of the same frame used.
type Device interface {
	CreateHeap(label string, size uint64) (Heap, error)
	DestroyHeap(h Heap)

	CreatePlacedBuffer(h Heap, offset uint64, desc *BufferDescriptor) (*Buffer, error)
	CreatePlacedTexture(h Heap, offset uint64, desc *TextureDescriptor) (*Texture, error)

	// CreateBuffer and CreateTexture create standalone resources, used for
	// external resources that outlive a frame.
	CreateBuffer(desc *BufferDescriptor) (*Buffer, error)
	CreateTexture(desc *TextureDescriptor) (*Texture, error)

	DestroyBuffer(b *Buffer)
	DestroyTexture(t *Texture)
}

// Recorder receives the commands the graph executor emits between nodes.
type Recorder interface {
	// Barriers records synchronization for the given barriers, in order.
	Barriers(barriers []Barrier)
	// ClearTexture clears a render target to its clear color, or a depth
	// target to its clear depth.
	ClearTexture(t *Texture)
	// Encoder returns the command encoder nodes record into. It may be nil
	// for recorders that only observe the barrier stream.
	Encoder() hal.CommandEncoder
}
