package resource

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Kind distinguishes buffers from textures.
type Kind uint8

const (
	KindBuffer Kind = iota
	KindTexture
)

// String returns "buffer" or "texture".
func (k Kind) String() string {
	if k == KindTexture {
		return "texture"
	}
	return "buffer"
}

// Resource is the common view of a [Buffer] or [Texture].
type Resource interface {
	Label() string
	Kind() Kind
	// Placement reports the heap offset and size the resource occupies.
	// placed is false for resources that do not live in a shared heap.
	Placement() (offset, size uint64, placed bool)
}

// Placement locates a resource inside a heap.
type Placement struct {
	Heap   Heap
	Offset uint64
	Size   uint64
}

// BufferDescriptor describes a structured buffer.
type BufferDescriptor struct {
	Label       string
	ElementSize uint32
	Count       uint32
	Usage       gputypes.BufferUsage
}

// Size returns the byte size of the buffer.
func (d *BufferDescriptor) Size() uint64 {
	return uint64(d.ElementSize) * uint64(d.Count)
}

// Buffer is a GPU buffer with usage state tracking.
type Buffer struct {
	desc      BufferDescriptor
	raw       hal.Buffer
	placement *Placement
	state     gputypes.BufferUsage
}

// NewBuffer wraps a backend buffer. placement may be nil for external
// buffers the graph does not allocate.
func NewBuffer(raw hal.Buffer, desc BufferDescriptor, placement *Placement) *Buffer {
	return &Buffer{desc: desc, raw: raw, placement: placement}
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.desc.Label }

// Kind returns KindBuffer.
func (b *Buffer) Kind() Kind { return KindBuffer }

// Descriptor returns the creation parameters.
func (b *Buffer) Descriptor() BufferDescriptor { return b.desc }

// Size returns the byte size.
func (b *Buffer) Size() uint64 { return b.desc.Size() }

// Raw returns the backend buffer. It is nil for buffers created without a
// backend object.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Usage returns every usage the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.desc.Usage }

// State returns the current usage state, 0 before the first transition.
func (b *Buffer) State() gputypes.BufferUsage { return b.state }

// Placement implements Resource.
func (b *Buffer) Placement() (offset, size uint64, placed bool) {
	if b.placement == nil {
		return 0, b.Size(), false
	}
	return b.placement.Offset, b.placement.Size, true
}

// Supports reports whether u is within the buffer's creation usages.
func (b *Buffer) Supports(u gputypes.BufferUsage) bool {
	return u != 0 && b.desc.Usage&u == u
}

// NeedsUAV reports whether moving to u requires a UAV barrier: the buffer
// is already in storage state and is about to be accessed as storage again.
func (b *Buffer) NeedsUAV(u gputypes.BufferUsage) bool {
	return u == gputypes.BufferUsageStorage && b.state == gputypes.BufferUsageStorage
}

// Transition moves the buffer to usage u. It returns the transition barrier
// and true when the state changed.
func (b *Buffer) Transition(u gputypes.BufferUsage) (Barrier, bool) {
	if b.state == u {
		return Barrier{}, false
	}
	bar := Barrier{
		Kind:           BarrierTransition,
		Resource:       b,
		OldBufferUsage: b.state,
		NewBufferUsage: u,
	}
	b.state = u
	return bar, true
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	// ClearColor is used when a color texture is cleared before first use.
	ClearColor gputypes.Color
	// ClearDepth is used when a depth texture is cleared before first use.
	ClearDepth float32
}

// Size returns the byte size of the texture, 0 if the format has no known
// block size.
func (d *TextureDescriptor) Size() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(BlockSize(d.Format))
}

// Texture is a GPU texture with usage state tracking.
type Texture struct {
	desc      TextureDescriptor
	raw       hal.Texture
	view      hal.TextureView
	placement *Placement
	state     gputypes.TextureUsage
}

// NewTexture wraps a backend texture and its default view.
func NewTexture(raw hal.Texture, view hal.TextureView, desc TextureDescriptor, placement *Placement) *Texture {
	return &Texture{desc: desc, raw: raw, view: view, placement: placement}
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.desc.Label }

// Kind returns KindTexture.
func (t *Texture) Kind() Kind { return KindTexture }

// Descriptor returns the creation parameters.
func (t *Texture) Descriptor() TextureDescriptor { return t.desc }

// Raw returns the backend texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// View returns the default full-resource view.
func (t *Texture) View() hal.TextureView { return t.view }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// Usage returns every usage the texture was created with.
func (t *Texture) Usage() gputypes.TextureUsage { return t.desc.Usage }

// State returns the current usage state, 0 before the first transition.
func (t *Texture) State() gputypes.TextureUsage { return t.state }

// IsDepth reports whether the texture has a depth aspect.
func (t *Texture) IsDepth() bool { return t.desc.Format.HasDepth() }

// Placement implements Resource.
func (t *Texture) Placement() (offset, size uint64, placed bool) {
	if t.placement == nil {
		return 0, t.desc.Size(), false
	}
	return t.placement.Offset, t.placement.Size, true
}

// Supports reports whether u is within the texture's creation usages.
func (t *Texture) Supports(u gputypes.TextureUsage) bool {
	return u != 0 && t.desc.Usage&u == u
}

// NeedsUAV reports whether moving to u requires a UAV barrier.
func (t *Texture) NeedsUAV(u gputypes.TextureUsage) bool {
	return u == gputypes.TextureUsageStorageBinding && t.state == gputypes.TextureUsageStorageBinding
}

// Transition moves the texture to usage u. It returns the transition
// barrier and true when the state changed.
func (t *Texture) Transition(u gputypes.TextureUsage) (Barrier, bool) {
	if t.state == u {
		return Barrier{}, false
	}
	bar := Barrier{
		Kind:            BarrierTransition,
		Resource:        t,
		OldTextureUsage: t.state,
		NewTextureUsage: u,
	}
	t.state = u
	return bar, true
}
