package rendergraph

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/resource"
)

// ResourceID names a logical resource slot. Two IDs are equal iff their
// strings are equal.
type ResourceID string

// BufferSpec describes a buffer a node wants allocated for this frame.
// Usage starts as the declared output usage; nodes may add flags for
// later consumers, but the graph adds every declared usage anyway.
type BufferSpec struct {
	ElementSize uint32
	Count       uint32
	Usage       gputypes.BufferUsage
}

func (s *BufferSpec) empty() bool { return s.ElementSize == 0 || s.Count == 0 }

// TextureSpec describes a 2D texture a node wants allocated for this frame.
type TextureSpec struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	// ClearColor is applied to new render targets. Defaults to opaque black.
	ClearColor gputypes.Color
	// ClearDepth is applied to new depth targets. Defaults to 1.
	ClearDepth float32
}

func (s *TextureSpec) empty() bool { return s.Width == 0 || s.Height == 0 }

// Rename is a declared rename: the node consumes From and produces To
// backed by the same memory.
type Rename struct {
	From ResourceID
	To   ResourceID
}

// access is one declared use of a resource by a node.
type access struct {
	id      ResourceID
	kind    resource.Kind
	buffer  gputypes.BufferUsage
	texture gputypes.TextureUsage
}

func (a access) sameUsage(b access) bool {
	return a.kind == b.kind && a.buffer == b.buffer && a.texture == b.texture
}

// storage reports whether the access may write through a storage binding.
func (a access) storage() bool {
	return a.buffer&gputypes.BufferUsageStorage != 0 ||
		a.texture&gputypes.TextureUsageStorageBinding != 0
}

func (a access) usageString() string {
	if a.kind == resource.KindTexture {
		return resource.TextureUsageName(a.texture)
	}
	return resource.BufferUsageName(a.buffer)
}

// interner maps resource IDs to dense indices for the builder's sets.
type interner struct {
	index map[ResourceID]int
	names []ResourceID
}

func newInterner() *interner {
	return &interner{index: make(map[ResourceID]int)}
}

func (in *interner) intern(id ResourceID) int {
	if i, ok := in.index[id]; ok {
		return i
	}
	i := len(in.names)
	in.index[id] = i
	in.names = append(in.names, id)
	return i
}

func (in *interner) lookup(id ResourceID) (int, bool) {
	i, ok := in.index[id]
	return i, ok
}

func (in *interner) name(i int) ResourceID { return in.names[i] }

func (in *interner) len() int { return len(in.names) }
