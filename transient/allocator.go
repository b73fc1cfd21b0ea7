package transient

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rendergraph/internal/freelist"
	"github.com/gogpu/rendergraph/internal/pool"
	"github.com/gogpu/rendergraph/resource"
)

// Handle identifies a live transient resource. The zero Handle is invalid.
type Handle struct {
	h    pool.Handle
	kind resource.Kind
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.h.IsZero() }

// Kind reports whether the handle refers to a buffer or a texture.
func (h Handle) Kind() resource.Kind { return h.kind }

// entry is a live transient resource.
type entry struct {
	frame   uint64
	rng     freelist.Range
	buffer  *resource.Buffer
	texture *resource.Texture
}

func (e *entry) resource() resource.Resource {
	if e.texture != nil {
		return e.texture
	}
	return e.buffer
}

// pendingFree remembers a released resource until its frame has left the
// frames-in-flight window. It owns the GPU object until then.
type pendingFree struct {
	frame   uint64
	rng     freelist.Range
	res     resource.Resource
	aliased bool
}

// Stats is a snapshot of allocator state.
type Stats struct {
	HeapSize         uint64
	LiveResources    int
	UsedBytes        uint64
	PeakBytes        uint64
	PendingFrees     int
	Fragments        int
	Allocations      uint64
	AliasingBarriers uint64
}

// Allocator places transient resources in a single heap.
//
// Allocator is safe for concurrent use, though the render graph only calls
// it from the recording goroutine.
type Allocator struct {
	mu sync.Mutex

	device resource.Device
	clock  Clock
	config Config
	heap   resource.Heap

	ranges  *freelist.Allocator
	live    *pool.Pool[entry]
	pending []pendingFree

	barriers []resource.Barrier

	peak             uint64
	allocations      uint64
	aliasingBarriers uint64

	closed bool
}

// New creates the heap and returns an allocator over it.
func New(device resource.Device, clock Clock, config Config) (*Allocator, error) {
	if device == nil {
		return nil, fmt.Errorf("transient: nil device")
	}
	if clock == nil {
		clock = NewFrameClock(DefaultFramesInFlight)
	}
	config = config.withDefaults()

	heap, err := device.CreateHeap(config.Label, config.HeapSize)
	if err != nil {
		return nil, fmt.Errorf("transient: create heap: %w", err)
	}

	slogger().Debug("transient: heap created",
		slog.String("label", config.Label),
		slog.Uint64("size", config.HeapSize),
		slog.Int("max_resources", config.MaxResources),
		slog.Uint64("alignment", config.Alignment))

	return &Allocator{
		device: device,
		clock:  clock,
		config: config,
		heap:   heap,
		ranges: freelist.New(0, config.HeapSize),
		live:   pool.New[entry](config.MaxResources),
	}, nil
}

// Config returns the effective configuration.
func (a *Allocator) Config() Config { return a.config }

// Clock returns the clock the allocator reads frame numbers from.
func (a *Allocator) Clock() Clock { return a.clock }

// AllocateBuffer places a new buffer in the heap.
func (a *Allocator) AllocateBuffer(desc resource.BufferDescriptor) (Handle, *resource.Buffer, error) {
	size := desc.Size()
	if size == 0 {
		return Handle{}, nil, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, desc.Label)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	h, e, err := a.reserve(size, desc.Label)
	if err != nil {
		return Handle{}, nil, err
	}
	buf, err := a.device.CreatePlacedBuffer(a.heap, e.rng.Start, &desc)
	if err != nil {
		a.unreserve(h, e)
		return Handle{}, nil, fmt.Errorf("transient: create buffer %q: %w", desc.Label, err)
	}
	e.buffer = buf
	a.placed(e, desc.Label)
	a.checkAliasing(buf, e)

	return Handle{h: h, kind: resource.KindBuffer}, buf, nil
}

// AllocateTexture places a new 2D texture in the heap.
func (a *Allocator) AllocateTexture(desc resource.TextureDescriptor) (Handle, *resource.Texture, error) {
	if resource.BlockSize(desc.Format) == 0 {
		return Handle{}, nil, fmt.Errorf("%w: texture %q: %w", ErrInvalidDescriptor, desc.Label, resource.ErrUnsupportedFormat)
	}
	size := desc.Size()
	if size == 0 {
		return Handle{}, nil, fmt.Errorf("%w: texture %q has zero size", ErrInvalidDescriptor, desc.Label)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	h, e, err := a.reserve(size, desc.Label)
	if err != nil {
		return Handle{}, nil, err
	}
	tex, err := a.device.CreatePlacedTexture(a.heap, e.rng.Start, &desc)
	if err != nil {
		a.unreserve(h, e)
		return Handle{}, nil, fmt.Errorf("transient: create texture %q: %w", desc.Label, err)
	}
	e.texture = tex
	a.placed(e, desc.Label)
	a.checkAliasing(tex, e)

	return Handle{h: h, kind: resource.KindTexture}, tex, nil
}

// reserve takes a pool slot and a heap range. Callers hold a.mu.
func (a *Allocator) reserve(size uint64, label string) (pool.Handle, *entry, error) {
	if a.closed {
		return pool.Handle{}, nil, ErrClosed
	}
	h, e, err := a.live.Allocate()
	if err != nil {
		return pool.Handle{}, nil, fmt.Errorf("%w: %d live resources", ErrPoolExhausted, a.live.Len())
	}
	rng, ok := a.ranges.Allocate(size, a.config.Alignment)
	if !ok {
		a.live.Free(h)
		return pool.Handle{}, nil, fmt.Errorf("%w: %q needs %d bytes, largest free block is %d",
			ErrOutOfMemory, label, size, a.ranges.LargestFree())
	}
	e.rng = rng
	e.frame = a.clock.FrameNumber()
	return h, e, nil
}

// placed counts a reservation whose resource the device created. Callers
// hold a.mu.
func (a *Allocator) placed(e *entry, label string) {
	a.allocations++
	if used := a.ranges.UsedBytes(); used > a.peak {
		a.peak = used
	}
	slogger().Debug("transient: placed",
		slog.String("label", label),
		slog.Uint64("offset", e.rng.Start),
		slog.Uint64("size", e.rng.Size),
		slog.Uint64("frame", e.frame))
}

// unreserve undoes reserve after the device failed to create the resource.
// Callers hold a.mu.
func (a *Allocator) unreserve(h pool.Handle, e *entry) {
	a.ranges.Free(e.rng)
	a.live.Free(h)
}

// checkAliasing scans this frame's pending-free records, most recent first,
// and queues one aliasing barrier for the first unaliased record whose range
// overlaps the new placement. Callers hold a.mu.
func (a *Allocator) checkAliasing(r resource.Resource, e *entry) {
	for i := len(a.pending) - 1; i >= 0; i-- {
		p := &a.pending[i]
		if p.frame != e.frame {
			// Older records come earlier; reuse across frames is already ordered.
			break
		}
		if p.aliased || !p.rng.Overlaps(e.rng) {
			continue
		}
		p.aliased = true
		a.aliasingBarriers++
		a.barriers = append(a.barriers, resource.Barrier{
			Kind:     resource.BarrierAliasing,
			Resource: r,
			Before:   p.res,
		})
		slogger().Debug("transient: aliasing",
			slog.String("before", p.res.Label()),
			slog.String("after", r.Label()))
		return
	}
}

// Buffer returns the buffer for h.
func (a *Allocator) Buffer(h Handle) (*resource.Buffer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.live.Get(h.h)
	if !ok || e.buffer == nil {
		return nil, false
	}
	return e.buffer, true
}

// Texture returns the texture for h.
func (a *Allocator) Texture(h Handle) (*resource.Texture, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.live.Get(h.h)
	if !ok || e.texture == nil {
		return nil, false
	}
	return e.texture, true
}

// Free releases a resource allocated in the current frame. Its range is
// available to the next allocation immediately; the GPU object is kept
// until the frame leaves the frames-in-flight window.
func (a *Allocator) Free(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.live.Get(h.h)
	if !ok {
		return ErrInvalidHandle
	}
	if frame := a.clock.FrameNumber(); e.frame != frame {
		return fmt.Errorf("%w: %q allocated in frame %d, freed in frame %d",
			ErrCrossFrameRelease, e.resource().Label(), e.frame, frame)
	}
	a.release(h.h, e)
	return nil
}

// release moves a live entry to the pending-free list. Callers hold a.mu.
func (a *Allocator) release(h pool.Handle, e *entry) {
	a.pending = append(a.pending, pendingFree{
		frame: e.frame,
		rng:   e.rng,
		res:   e.resource(),
	})
	a.ranges.Free(e.rng)
	a.live.Free(h)
}

// ReleaseAll frees every live resource regardless of frame and returns how
// many there were. It is meant for the owner of the allocator; the graph
// executor frees only its own handles after a failed frame.
func (a *Allocator) ReleaseAll() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	var handles []pool.Handle
	a.live.Each(func(h pool.Handle, _ *entry) {
		handles = append(handles, h)
	})
	for _, h := range handles {
		e, _ := a.live.Get(h)
		a.release(h, e)
	}
	return len(handles)
}

// Step returns the aliasing barriers queued since the previous call.
func (a *Allocator) Step() []resource.Barrier {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.barriers
	a.barriers = nil
	return out
}

// PreUpdate runs at the start of a frame. It fails with ErrLeak if any
// resource is still live, and destroys pending-free resources whose frame
// has left the frames-in-flight window.
func (a *Allocator) PreUpdate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if n := a.live.Len(); n != 0 || a.ranges.Allocations() != 0 {
		var labels []string
		a.live.Each(func(_ pool.Handle, e *entry) {
			labels = append(labels, e.resource().Label())
		})
		return fmt.Errorf("%w: %d still live %v", ErrLeak, n, labels)
	}

	frame := a.clock.FrameNumber()
	window := a.clock.FramesInFlight()

	kept := a.pending[:0]
	purged := 0
	for _, p := range a.pending {
		if p.frame+window <= frame {
			a.destroy(p.res)
			purged++
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(a.pending); i++ {
		a.pending[i] = pendingFree{}
	}
	a.pending = kept

	if purged > 0 {
		slogger().Debug("transient: purged pending frees",
			slog.Int("count", purged),
			slog.Int("remaining", len(kept)),
			slog.Uint64("frame", frame))
	}
	return nil
}

func (a *Allocator) destroy(r resource.Resource) {
	switch r := r.(type) {
	case *resource.Buffer:
		a.device.DestroyBuffer(r)
	case *resource.Texture:
		a.device.DestroyTexture(r)
	}
}

// Stats returns a snapshot of allocator counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		HeapSize:         a.config.HeapSize,
		LiveResources:    a.live.Len(),
		UsedBytes:        a.ranges.UsedBytes(),
		PeakBytes:        a.peak,
		PendingFrees:     len(a.pending),
		Fragments:        a.ranges.Fragments(),
		Allocations:      a.allocations,
		AliasingBarriers: a.aliasingBarriers,
	}
}

// Close destroys every live and pending resource and the heap. Close is
// idempotent.
func (a *Allocator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true

	if n := a.live.Len(); n > 0 {
		slogger().Warn("transient: closing with live resources", slog.Int("count", n))
	}
	a.live.Each(func(_ pool.Handle, e *entry) {
		a.destroy(e.resource())
	})
	for _, p := range a.pending {
		a.destroy(p.res)
	}
	a.pending = nil
	a.barriers = nil
	a.ranges.Reset()
	a.device.DestroyHeap(a.heap)
	a.heap = nil
}
