package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/resource"
)

// SetupContext collects the resource declarations of one node.
//
// Declarations are made from Node.Setup. The first invalid declaration is
// kept and later calls become no-ops, so node code can declare without
// checking errors; Graph.Setup reports the error.
type SetupContext struct {
	node string

	inputs  []access
	outputs []access
	renames []Rename

	buffers  map[ResourceID]*BufferSpec
	textures map[ResourceID]*TextureSpec

	// declared maps every declared ID to true for outputs, false for inputs.
	declared map[ResourceID]bool

	err error
}

func newSetupContext(node string) *SetupContext {
	return &SetupContext{
		node:     node,
		buffers:  make(map[ResourceID]*BufferSpec),
		textures: make(map[ResourceID]*TextureSpec),
		declared: make(map[ResourceID]bool),
	}
}

// Node returns the name of the node being set up.
func (c *SetupContext) Node() string { return c.node }

// Err returns the first declaration error, if any.
func (c *SetupContext) Err() error { return c.err }

func (c *SetupContext) fail(err error, format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: node %q: %s", err, c.node, fmt.Sprintf(format, args...))
	}
}

// InputBuffer declares that the node reads id with a single usage.
func (c *SetupContext) InputBuffer(id ResourceID, usage gputypes.BufferUsage) {
	if c.err != nil {
		return
	}
	if !resource.SingleBufferUsage(usage) {
		c.fail(ErrInvalidUsage, "input %q: usage %s is not a single flag", id, resource.BufferUsageName(usage))
		return
	}
	c.input(access{id: id, kind: resource.KindBuffer, buffer: usage})
}

// InputTexture declares that the node reads id with a single usage.
func (c *SetupContext) InputTexture(id ResourceID, usage gputypes.TextureUsage) {
	if c.err != nil {
		return
	}
	if !resource.SingleTextureUsage(usage) {
		c.fail(ErrInvalidUsage, "input %q: usage %s is not a single flag", id, resource.TextureUsageName(usage))
		return
	}
	c.input(access{id: id, kind: resource.KindTexture, texture: usage})
}

func (c *SetupContext) input(a access) {
	if out, ok := c.declared[a.id]; ok {
		if out {
			c.fail(ErrSelfCycle, "%q is both input and output", a.id)
		} else {
			c.fail(ErrDuplicateDeclaration, "input %q declared twice", a.id)
		}
		return
	}
	c.declared[a.id] = false
	c.inputs = append(c.inputs, a)
}

func (c *SetupContext) output(a access) bool {
	if out, ok := c.declared[a.id]; ok {
		if out {
			c.fail(ErrDuplicateDeclaration, "output %q declared twice", a.id)
		} else {
			c.fail(ErrSelfCycle, "%q is both input and output", a.id)
		}
		return false
	}
	c.declared[a.id] = true
	c.outputs = append(c.outputs, a)
	return true
}

// OutputBuffer declares that the node writes id and returns the spec to
// fill in when the graph must allocate it. The spec is ignored when id is
// an external resource. The returned pointer is never nil.
func (c *SetupContext) OutputBuffer(id ResourceID, usage gputypes.BufferUsage) *BufferSpec {
	spec := &BufferSpec{Usage: usage}
	if c.err != nil {
		return spec
	}
	if !resource.WritableBufferUsage(usage) {
		c.fail(ErrInvalidUsage, "output %q: usage %s cannot write", id, resource.BufferUsageName(usage))
		return spec
	}
	if c.output(access{id: id, kind: resource.KindBuffer, buffer: usage}) {
		c.buffers[id] = spec
	}
	return spec
}

// OutputTexture declares that the node writes id and returns the spec to
// fill in when the graph must allocate it. ClearColor defaults to opaque
// black and ClearDepth to 1.
func (c *SetupContext) OutputTexture(id ResourceID, usage gputypes.TextureUsage) *TextureSpec {
	spec := &TextureSpec{
		Usage:      usage,
		ClearColor: gputypes.Color{A: 1},
		ClearDepth: 1,
	}
	if c.err != nil {
		return spec
	}
	if !resource.WritableTextureUsage(usage) {
		c.fail(ErrInvalidUsage, "output %q: usage %s cannot write", id, resource.TextureUsageName(usage))
		return spec
	}
	if c.output(access{id: id, kind: resource.KindTexture, texture: usage}) {
		c.textures[id] = spec
	}
	return spec
}

// RenameBuffer declares that the node consumes from and produces to in the
// same memory. After the node has run, from can no longer be read.
func (c *SetupContext) RenameBuffer(from, to ResourceID, usage gputypes.BufferUsage) {
	if c.err != nil {
		return
	}
	if !resource.WritableBufferUsage(usage) {
		c.fail(ErrInvalidUsage, "rename %q -> %q: usage %s cannot write", from, to, resource.BufferUsageName(usage))
		return
	}
	c.rename(from, to,
		access{id: from, kind: resource.KindBuffer, buffer: usage},
		access{id: to, kind: resource.KindBuffer, buffer: usage})
}

// RenameTexture is RenameBuffer for textures.
func (c *SetupContext) RenameTexture(from, to ResourceID, usage gputypes.TextureUsage) {
	if c.err != nil {
		return
	}
	if !resource.WritableTextureUsage(usage) {
		c.fail(ErrInvalidUsage, "rename %q -> %q: usage %s cannot write", from, to, resource.TextureUsageName(usage))
		return
	}
	c.rename(from, to,
		access{id: from, kind: resource.KindTexture, texture: usage},
		access{id: to, kind: resource.KindTexture, texture: usage})
}

func (c *SetupContext) rename(from, to ResourceID, in, out access) {
	if from == to {
		c.fail(ErrSelfCycle, "rename of %q onto itself", from)
		return
	}
	c.input(in)
	if c.err != nil {
		return
	}
	if !c.output(out) {
		return
	}
	c.renames = append(c.renames, Rename{From: from, To: to})
}

// Inputs returns the declared inputs, including rename sources, in
// declaration order.
func (c *SetupContext) Inputs() []ResourceID { return ids(c.inputs) }

// Outputs returns the declared outputs, including rename targets, in
// declaration order.
func (c *SetupContext) Outputs() []ResourceID { return ids(c.outputs) }

// Renames returns the declared renames.
func (c *SetupContext) Renames() []Rename {
	return append([]Rename(nil), c.renames...)
}

// BufferSpec returns the spec of a declared buffer output.
func (c *SetupContext) BufferSpec(id ResourceID) (BufferSpec, bool) {
	s, ok := c.buffers[id]
	if !ok {
		return BufferSpec{}, false
	}
	return *s, true
}

// TextureSpec returns the spec of a declared texture output.
func (c *SetupContext) TextureSpec(id ResourceID) (TextureSpec, bool) {
	s, ok := c.textures[id]
	if !ok {
		return TextureSpec{}, false
	}
	return *s, true
}

func ids(accesses []access) []ResourceID {
	out := make([]ResourceID, len(accesses))
	for i, a := range accesses {
		out[i] = a.id
	}
	return out
}
