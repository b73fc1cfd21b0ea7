// Package pool provides a fixed-capacity object pool addressed by
// generational handles.
package pool

import "errors"

// ErrExhausted is returned when every slot of the pool is in use.
var ErrExhausted = errors.New("pool: exhausted")

// Handle addresses one slot of a Pool. A handle stays valid until the slot
// is freed; reusing the slot bumps its generation so stale handles are
// rejected. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// Index returns the slot index.
func (h Handle) Index() uint32 { return h.index }

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.generation == 0 }

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Pool is a fixed-capacity slab of T values.
//
// Pool is not safe for concurrent use.
type Pool[T any] struct {
	slots []slot[T]
	free  []uint32 // stack of free slot indices
	live  int
}

// New creates a pool with room for capacity objects.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{
		slots: make([]slot[T], capacity),
		free:  make([]uint32, capacity),
	}
	for i := range capacity {
		// Pop order hands out low indices first.
		p.free[i] = uint32(capacity - 1 - i) //nolint:gosec // capacity fits uint32
	}
	return p
}

// Allocate reserves a slot and returns its handle together with a pointer
// to the zeroed value stored in it.
func (p *Pool[T]) Allocate() (Handle, *T, error) {
	if len(p.free) == 0 {
		return Handle{}, nil, ErrExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	s := &p.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.live = true
	var zero T
	s.value = zero
	p.live++

	return Handle{index: idx, generation: s.generation}, &s.value, nil
}

// Get returns the value for h, or false if h is stale or was never valid.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	if !p.Valid(h) {
		return nil, false
	}
	return &p.slots[h.index].value, true
}

// Valid reports whether h addresses a live slot.
func (p *Pool[T]) Valid(h Handle) bool {
	if h.IsZero() || int(h.index) >= len(p.slots) {
		return false
	}
	s := &p.slots[h.index]
	return s.live && s.generation == h.generation
}

// Free releases the slot addressed by h. It reports false if h was not live.
func (p *Pool[T]) Free(h Handle) bool {
	if !p.Valid(h) {
		return false
	}
	s := &p.slots[h.index]
	var zero T
	s.value = zero
	s.live = false
	p.free = append(p.free, h.index)
	p.live--
	return true
}

// Len returns the number of live objects.
func (p *Pool[T]) Len() int { return p.live }

// Cap returns the pool capacity.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Each calls fn for every live object in slot order.
func (p *Pool[T]) Each(fn func(Handle, *T)) {
	for i := range p.slots {
		s := &p.slots[i]
		if s.live {
			fn(Handle{index: uint32(i), generation: s.generation}, &s.value) //nolint:gosec // index bounded by capacity
		}
	}
}
