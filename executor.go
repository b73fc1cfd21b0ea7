package rendergraph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/internal/parallel"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/transient"
)

// FrameContext carries what one frame's execution records into.
type FrameContext struct {
	// Recorder receives barriers and clears, and exposes the command
	// encoder nodes record into.
	Recorder resource.Recorder
	// Scene is passed through to every node.
	Scene any
}

// FrameStats describes the last executed frame.
type FrameStats struct {
	Frame            uint64
	Levels           int
	Nodes            int
	Allocations      int
	Releases         int
	Transitions      int
	UAVBarriers      int
	AliasingBarriers int
	Clears           int
}

// ExecuteContext is a node's view of one frame: only the resources the
// node declared, resolved to concrete buffers and textures.
type ExecuteContext struct {
	node     string
	frame    uint64
	fc       *FrameContext
	mu       *sync.Mutex
	buffers  map[ResourceID]*resource.Buffer
	textures map[ResourceID]*resource.Texture
}

// Node returns the name of the executing node.
func (c *ExecuteContext) Node() string { return c.node }

// Frame returns the allocator's frame number.
func (c *ExecuteContext) Frame() uint64 { return c.frame }

// Scene returns FrameContext.Scene.
func (c *ExecuteContext) Scene() any { return c.fc.Scene }

// Buffer returns a buffer the node declared.
func (c *ExecuteContext) Buffer(id ResourceID) (*resource.Buffer, error) {
	b, ok := c.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %q, buffer %q", ErrResourceNotDeclared, c.node, id)
	}
	return b, nil
}

// Texture returns a texture the node declared.
func (c *ExecuteContext) Texture(id ResourceID) (*resource.Texture, error) {
	t, ok := c.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %q, texture %q", ErrResourceNotDeclared, c.node, id)
	}
	return t, nil
}

// Recorder returns the frame's recorder. Nodes of a graph with workers
// must use Encode instead.
func (c *ExecuteContext) Recorder() resource.Recorder { return c.fc.Recorder }

// Encode runs fn with exclusive access to the recorder.
func (c *ExecuteContext) Encode(fn func(rec resource.Recorder) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.fc.Recorder)
}

// frameState is the mutable state of one Execute call.
type frameState struct {
	alloc   *transient.Allocator
	refs    []int
	handles map[int]transient.Handle
	bound   []resource.Resource
	stats   FrameStats
}

// Execute runs one frame: for each level it allocates the level's new
// transients, records barriers and clears, runs the nodes and releases
// transients whose last user has run.
//
// The caller advances the allocator's clock and calls PreUpdate before
// Execute, and submits the recorder afterwards. On error every transient
// still live in this frame is released.
func (g *Graph) Execute(alloc *transient.Allocator, fc *FrameContext) error {
	s := g.sched
	if s == nil {
		return ErrNotSetUp
	}
	if fc == nil || fc.Recorder == nil {
		return ErrNoRecorder
	}
	if alloc == nil && s.transientCount() > 0 {
		return ErrNoAllocator
	}

	st := &frameState{
		alloc:   alloc,
		refs:    append([]int(nil), s.refs...),
		handles: make(map[int]transient.Handle),
		bound:   make([]resource.Resource, len(s.bindings)),
	}
	if alloc != nil {
		st.stats.Frame = alloc.Clock().FrameNumber()
	}
	for r, bind := range s.bindings {
		if bind != nil && !bind.transient() {
			st.bound[r] = bind.external
		}
	}

	err := g.executeLevels(s, st, fc)
	if err == nil {
		err = st.checkLifetimes(s)
	}
	if err != nil {
		if n := st.releaseAll(); n > 0 {
			slogger().Warn("rendergraph: released transients after failed frame",
				slog.String("graph", g.opts.label), slog.Int("count", n))
		}
	}
	st.stats.Levels = len(s.levels)
	g.stats = st.stats
	return err
}

func (g *Graph) executeLevels(s *schedule, st *frameState, fc *FrameContext) error {
	var mu sync.Mutex
	for li, level := range s.levels {
		if err := st.allocate(s, s.allocs[li]); err != nil {
			return err
		}

		var barriers []resource.Barrier
		if st.alloc != nil {
			aliasing := st.alloc.Step()
			st.stats.AliasingBarriers += len(aliasing)
			barriers = aliasing
		}
		barriers = st.accessBarriers(s, li, barriers)
		if len(barriers) > 0 {
			fc.Recorder.Barriers(barriers)
		}

		for _, r := range s.allocs[li] {
			if !s.bindings[r].clear {
				continue
			}
			if t, ok := st.bound[r].(*resource.Texture); ok {
				fc.Recorder.ClearTexture(t)
				st.stats.Clears++
			}
		}

		slogger().Debug("rendergraph: level",
			slog.String("graph", g.opts.label),
			slog.Int("level", li),
			slog.Int("nodes", len(level)),
			slog.Int("barriers", len(barriers)))

		if err := g.runNodes(s, st, fc, &mu, level); err != nil {
			return err
		}
		st.stats.Nodes += len(level)

		if err := st.release(s, level); err != nil {
			return err
		}
	}
	return nil
}

// allocate creates the transients of one level.
func (st *frameState) allocate(s *schedule, roots []int) error {
	for _, r := range roots {
		bind := s.bindings[r]
		var (
			h   transient.Handle
			res resource.Resource
			err error
		)
		switch bind.kind {
		case resource.KindBuffer:
			var b *resource.Buffer
			h, b, err = st.alloc.AllocateBuffer(bind.bufferDescriptor())
			res = b
		case resource.KindTexture:
			var t *resource.Texture
			h, t, err = st.alloc.AllocateTexture(bind.textureDescriptor())
			res = t
		}
		if err != nil {
			return fmt.Errorf("rendergraph: allocate %q: %w", bind.id, err)
		}
		st.handles[r] = h
		st.bound[r] = res
		st.stats.Allocations++
	}
	return nil
}

// accessBarriers appends the barriers level li needs. Each resolved
// resource gets at most one barrier per level, to the merged usage of the
// level's accesses.
func (st *frameState) accessBarriers(s *schedule, li int, barriers []resource.Barrier) []resource.Barrier {
	for _, u := range s.usage[li] {
		switch r := st.bound[u.root].(type) {
		case *resource.Buffer:
			barriers = st.bufferBarrier(r, u.buffer, barriers)
		case *resource.Texture:
			barriers = st.textureBarrier(r, u.texture, barriers)
		}
	}
	return barriers
}

func (st *frameState) bufferBarrier(b *resource.Buffer, u gputypes.BufferUsage, barriers []resource.Barrier) []resource.Barrier {
	if b.NeedsUAV(u) {
		st.stats.UAVBarriers++
		return append(barriers, resource.Barrier{Kind: resource.BarrierUAV, Resource: b})
	}
	if bar, ok := b.Transition(u); ok {
		st.stats.Transitions++
		return append(barriers, bar)
	}
	return barriers
}

func (st *frameState) textureBarrier(t *resource.Texture, u gputypes.TextureUsage, barriers []resource.Barrier) []resource.Barrier {
	if t.NeedsUAV(u) {
		st.stats.UAVBarriers++
		return append(barriers, resource.Barrier{Kind: resource.BarrierUAV, Resource: t})
	}
	if bar, ok := t.Transition(u); ok {
		st.stats.Transitions++
		return append(barriers, bar)
	}
	return barriers
}

// runNodes executes the nodes of one level, on the worker pool when the
// graph has one.
func (g *Graph) runNodes(s *schedule, st *frameState, fc *FrameContext, mu *sync.Mutex, level []int) error {
	ctxs := make([]*ExecuteContext, len(level))
	for i, n := range level {
		ctxs[i] = st.executeContext(s, g.nodes[n].name, n, fc, mu)
	}

	if g.pool == nil || len(level) < 2 {
		for i, n := range level {
			if err := g.nodes[n].node.Execute(ctxs[i]); err != nil {
				return fmt.Errorf("rendergraph: node %q: %w", g.nodes[n].name, err)
			}
		}
		return nil
	}

	tasks := make([]parallel.Task, len(level))
	for i, n := range level {
		entry, ctx := g.nodes[n], ctxs[i]
		tasks[i] = func() error {
			if err := entry.node.Execute(ctx); err != nil {
				return fmt.Errorf("rendergraph: node %q: %w", entry.name, err)
			}
			return nil
		}
	}
	return g.pool.ExecuteAll(tasks)
}

func (st *frameState) executeContext(s *schedule, name string, n int, fc *FrameContext, mu *sync.Mutex) *ExecuteContext {
	ctx := &ExecuteContext{
		node:     name,
		frame:    st.stats.Frame,
		fc:       fc,
		mu:       mu,
		buffers:  make(map[ResourceID]*resource.Buffer),
		textures: make(map[ResourceID]*resource.Texture),
	}
	for _, t := range s.touches[n] {
		switch r := st.bound[t.root].(type) {
		case *resource.Buffer:
			ctx.buffers[t.id] = r
		case *resource.Texture:
			ctx.textures[t.id] = r
		}
	}
	return ctx
}

// release counts down the level's touches and frees transients whose
// count reaches zero.
func (st *frameState) release(s *schedule, level []int) error {
	for _, n := range level {
		for _, t := range s.touches[n] {
			st.refs[t.root]--
			if st.refs[t.root] != 0 {
				continue
			}
			h, ok := st.handles[t.root]
			if !ok {
				continue
			}
			if err := st.alloc.Free(h); err != nil {
				return fmt.Errorf("rendergraph: release %q: %w", s.ids.name(t.root), err)
			}
			delete(st.handles, t.root)
			st.bound[t.root] = nil
			st.stats.Releases++
		}
	}
	return nil
}

func (st *frameState) checkLifetimes(s *schedule) error {
	for r, n := range st.refs {
		if n != 0 {
			return fmt.Errorf("%w: %q has %d uses left", ErrLifetimeMismatch, s.ids.name(r), n)
		}
	}
	if len(st.handles) != 0 {
		return fmt.Errorf("%w: %d transients still live", ErrLifetimeMismatch, len(st.handles))
	}
	return nil
}

// releaseAll frees the frame's live transients after a failure.
func (st *frameState) releaseAll() int {
	n := 0
	for r, h := range st.handles {
		if err := st.alloc.Free(h); err != nil {
			slogger().Warn("rendergraph: release failed", slog.String("err", err.Error()))
			continue
		}
		delete(st.handles, r)
		n++
	}
	return n
}
