package rendergraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/resource"
)

// binding is one resolved resource of the schedule: an external resource,
// or a transient the graph allocates when its creator's level starts.
type binding struct {
	id       ResourceID
	kind     resource.Kind
	external resource.Resource

	// creator is the node that allocates a transient, level its level.
	creator int
	level   int

	bufferUsage  gputypes.BufferUsage
	textureUsage gputypes.TextureUsage
	buffer       BufferSpec
	texture      TextureSpec

	// clear is set for new textures first written as render attachments.
	clear bool
}

func (r *binding) transient() bool { return r.external == nil }

func (r *binding) bufferDescriptor() resource.BufferDescriptor {
	return resource.BufferDescriptor{
		Label:       string(r.id),
		ElementSize: r.buffer.ElementSize,
		Count:       r.buffer.Count,
		Usage:       r.buffer.Usage | r.bufferUsage,
	}
}

func (r *binding) textureDescriptor() resource.TextureDescriptor {
	return resource.TextureDescriptor{
		Label:      string(r.id),
		Width:      r.texture.Width,
		Height:     r.texture.Height,
		Format:     r.texture.Format,
		Usage:      r.texture.Usage | r.textureUsage,
		ClearColor: r.texture.ClearColor,
		ClearDepth: r.texture.ClearDepth,
	}
}

// touch is one declared access with its resolved identity.
type touch struct {
	access
	root int
}

// levelAccess is the merged use of one root within a level. Reads with
// different usages merge; write marks an output or a storage access.
type levelAccess struct {
	touch
	write bool
}

// schedule is the product of a successful Setup. It is read-only while
// frames execute.
type schedule struct {
	ids         *interner
	levels      [][]int
	adjacency   [][]int
	startPoints []int
	culled      []int

	// touches lists every node's inputs, then outputs.
	touches [][]touch
	// usage lists, per level, the merged access of every root the level
	// touches in first-touch order.
	usage [][]levelAccess
	// bindings is indexed by root resource index; non-roots are nil.
	bindings []*binding
	// refs is the reference count of every root over one frame.
	refs []int
	// allocs lists the transients created at the start of each level.
	allocs [][]int
}

// resolveLifetimes runs the lifetime pass over a built schedule: it
// resolves renames, counts the touches of every resolved resource, checks
// usages and specs, and decides where transients are allocated.
func (b *builder) resolveLifetimes(externals map[ResourceID]resource.Resource) (*schedule, error) {
	s := &schedule{
		ids:         b.ids,
		levels:      b.levels,
		adjacency:   b.adjacency,
		startPoints: b.startPoints,
		culled:      b.culled(),
		touches:     make([][]touch, len(b.nodes)),
		bindings:    make([]*binding, b.ids.len()),
		refs:        make([]int, b.ids.len()),
		allocs:      make([][]int, len(b.levels)),
		usage:       make([][]levelAccess, len(b.levels)),
	}

	alias := make(map[int]int)
	for _, level := range b.levels {
		for _, n := range level {
			for _, r := range b.renames[n] {
				alias[r[1]] = r[0]
			}
		}
	}
	root := func(id int) (int, error) {
		seen := map[int]bool{id: true}
		for {
			from, ok := alias[id]
			if !ok {
				return id, nil
			}
			if seen[from] {
				return 0, fmt.Errorf("%w: through %q", ErrAliasCycle, b.ids.name(from))
			}
			seen[from] = true
			id = from
		}
	}

	var errs []error
	for li, level := range b.levels {
		levelUsage := make(map[int]int)
		for _, n := range level {
			ctx := b.nodes[n].ctx
			accesses := append(append([]access(nil), ctx.inputs...), ctx.outputs...)
			for i, a := range accesses {
				id, _ := b.ids.lookup(a.id)
				r, err := root(id)
				if err != nil {
					return nil, err
				}
				t := touch{access: a, root: r}
				s.touches[n] = append(s.touches[n], t)
				s.refs[r]++

				write := i >= len(ctx.inputs) || a.storage()
				if k, ok := levelUsage[r]; !ok {
					levelUsage[r] = len(s.usage[li])
					s.usage[li] = append(s.usage[li], levelAccess{touch: t, write: write})
				} else if prev := &s.usage[li][k]; prev.kind == a.kind {
					switch {
					case prev.sameUsage(a):
						prev.write = prev.write || write
					case !prev.write && !write:
						prev.buffer |= a.buffer
						prev.texture |= a.texture
					default:
						errs = append(errs, fmt.Errorf("%w: %q used as %s and %q as %s in level %d",
							ErrInvalidUsage, prev.id, prev.usageString(), a.id, a.usageString(), li))
					}
				}

				bind := s.bindings[r]
				if bind == nil {
					bind = &binding{id: b.ids.name(r), kind: a.kind, creator: -1}
					s.bindings[r] = bind
				}
				if bind.kind != a.kind {
					errs = append(errs, fmt.Errorf("%w: node %q declares %q as %s, previously %s",
						ErrInvalidUsage, b.nodes[n].name, a.id, a.kind, bind.kind))
					continue
				}
				bind.bufferUsage |= a.buffer
				bind.textureUsage |= a.texture
			}
			for _, a := range ctx.outputs {
				id, _ := b.ids.lookup(a.id)
				if _, renamed := alias[id]; renamed {
					continue
				}
				bind := s.bindings[id]
				bind.creator, bind.level = n, li
				bind.clear = a.kind == resource.KindTexture &&
					a.texture == gputypes.TextureUsageRenderAttachment
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	for r, bind := range s.bindings {
		if bind == nil {
			continue
		}
		if ext, ok := externals[bind.id]; ok {
			if err := bindExternal(b, bind, ext); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := bindTransient(b, bind); err != nil {
			errs = append(errs, err)
			continue
		}
		s.allocs[bind.level] = append(s.allocs[bind.level], r)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func bindExternal(b *builder, bind *binding, ext resource.Resource) error {
	if ext.Kind() != bind.kind {
		return fmt.Errorf("%w: external %q is a %s, declared as %s",
			ErrInvalidUsage, bind.id, ext.Kind(), bind.kind)
	}
	switch r := ext.(type) {
	case *resource.Buffer:
		if missing := bind.bufferUsage &^ r.Usage(); missing != 0 {
			return fmt.Errorf("%w: external %q lacks %s",
				ErrInvalidUsage, bind.id, resource.BufferUsageName(missing))
		}
	case *resource.Texture:
		if missing := bind.textureUsage &^ r.Usage(); missing != 0 {
			return fmt.Errorf("%w: external %q lacks %s",
				ErrInvalidUsage, bind.id, resource.TextureUsageName(missing))
		}
	}
	if bind.creator >= 0 {
		ctx := b.nodes[bind.creator].ctx
		bs, isBuf := ctx.buffers[bind.id]
		ts, isTex := ctx.textures[bind.id]
		if (isBuf && !bs.empty()) || (isTex && !ts.empty()) {
			slogger().Warn("rendergraph: spec ignored for external output",
				"node", b.nodes[bind.creator].name, "resource", string(bind.id))
		}
	}
	bind.external = ext
	bind.creator = -1
	bind.clear = false
	return nil
}

func bindTransient(b *builder, bind *binding) error {
	if bind.creator < 0 {
		return fmt.Errorf("%w: %q has no producer", ErrUnknownResource, bind.id)
	}
	node := b.nodes[bind.creator]
	switch bind.kind {
	case resource.KindBuffer:
		spec := node.ctx.buffers[bind.id]
		if spec == nil || spec.empty() {
			return fmt.Errorf("%w: node %q: buffer %q needs an element size and count",
				ErrInvalidSpec, node.name, bind.id)
		}
		bind.buffer = *spec
	case resource.KindTexture:
		spec := node.ctx.textures[bind.id]
		if spec == nil || spec.empty() {
			return fmt.Errorf("%w: node %q: texture %q needs a size",
				ErrInvalidSpec, node.name, bind.id)
		}
		if resource.BlockSize(spec.Format) == 0 {
			return fmt.Errorf("%w: node %q: texture %q: %w",
				ErrInvalidSpec, node.name, bind.id, resource.ErrUnsupportedFormat)
		}
		bind.texture = *spec
	}
	return nil
}

// lifetimes returns the reference count of every resolved resource by ID.
func (s *schedule) lifetimes() map[ResourceID]int {
	out := make(map[ResourceID]int)
	for r, n := range s.refs {
		if n > 0 {
			out[s.ids.name(r)] = n
		}
	}
	return out
}
