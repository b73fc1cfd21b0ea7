// Package freelist implements a first-fit free-list allocator over a
// contiguous address range.
//
// The allocator hands out byte ranges only; it never touches memory. It is
// used by the transient allocator to place resources inside a single GPU heap.
package freelist

import "sort"

// Range is a half-open byte range [Start, Start+Size).
type Range struct {
	Start uint64
	Size  uint64
}

// End returns the first byte past the range.
func (r Range) End() uint64 { return r.Start + r.Size }

// Overlaps reports whether two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End() && o.Start < r.End()
}

// Allocator manages free byte ranges inside [start, end).
//
// Free blocks are kept sorted by start offset and coalesced on Free, so a
// fully drained allocator always holds exactly one block.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	start, end  uint64
	free        []Range
	allocations int
	used        uint64
}

// New creates an allocator covering [start, end).
func New(start, end uint64) *Allocator {
	a := &Allocator{start: start, end: end}
	a.Reset()
	return a
}

// Reset drops every allocation and restores a single free block.
func (a *Allocator) Reset() {
	a.free = a.free[:0]
	if a.end > a.start {
		a.free = append(a.free, Range{Start: a.start, Size: a.end - a.start})
	}
	a.allocations = 0
	a.used = 0
}

// Allocate carves size bytes aligned to alignment out of the first free
// block large enough to hold them. Alignment padding in front of the
// placement stays on the free list. The second result is false when no
// block fits.
func (a *Allocator) Allocate(size, alignment uint64) (Range, bool) {
	if size == 0 {
		return Range{}, false
	}
	if alignment == 0 {
		alignment = 1
	}

	for i, block := range a.free {
		aligned := alignUp(block.Start, alignment)
		if aligned < block.Start || aligned-block.Start > block.Size {
			continue
		}
		pad := aligned - block.Start
		if block.Size-pad < size {
			continue
		}

		tail := Range{Start: aligned + size, Size: block.Size - pad - size}
		head := Range{Start: block.Start, Size: pad}

		switch {
		case head.Size > 0 && tail.Size > 0:
			a.free[i] = head
			a.free = append(a.free, Range{})
			copy(a.free[i+2:], a.free[i+1:])
			a.free[i+1] = tail
		case head.Size > 0:
			a.free[i] = head
		case tail.Size > 0:
			a.free[i] = tail
		default:
			a.free = append(a.free[:i], a.free[i+1:]...)
		}

		a.allocations++
		a.used += size
		return Range{Start: aligned, Size: size}, true
	}
	return Range{}, false
}

// Free returns a range previously obtained from Allocate. Adjacent free
// blocks are merged.
func (a *Allocator) Free(r Range) {
	if r.Size == 0 {
		return
	}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Start >= r.Start })
	a.free = append(a.free, Range{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r

	// Merge with the successor first so i stays valid.
	if i+1 < len(a.free) && a.free[i].End() == a.free[i+1].Start {
		a.free[i].Size += a.free[i+1].Size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].End() == a.free[i].Start {
		a.free[i-1].Size += a.free[i].Size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}

	a.allocations--
	a.used -= r.Size
}

// Allocations returns the number of live allocations.
func (a *Allocator) Allocations() int { return a.allocations }

// UsedBytes returns the number of bytes handed out, excluding padding.
func (a *Allocator) UsedBytes() uint64 { return a.used }

// Capacity returns the size of the managed range.
func (a *Allocator) Capacity() uint64 { return a.end - a.start }

// Fragments returns the number of free blocks.
func (a *Allocator) Fragments() int { return len(a.free) }

// Drained reports whether nothing is allocated and the free list is back
// to a single block spanning the whole range.
func (a *Allocator) Drained() bool {
	if a.allocations != 0 {
		return false
	}
	if a.end == a.start {
		return len(a.free) == 0
	}
	return len(a.free) == 1 && a.free[0] == Range{Start: a.start, Size: a.end - a.start}
}

// LargestFree returns the size of the largest free block.
func (a *Allocator) LargestFree() uint64 {
	var largest uint64
	for _, b := range a.free {
		if b.Size > largest {
			largest = b.Size
		}
	}
	return largest
}

func alignUp(v, alignment uint64) uint64 {
	if alignment&(alignment-1) == 0 {
		return (v + alignment - 1) &^ (alignment - 1)
	}
	return (v + alignment - 1) / alignment * alignment
}
