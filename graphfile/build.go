package graphfile

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/nodes"
	"github.com/gogpu/rendergraph/resource"
)

// Instance is a graph built from a file, with the external resources it
// created for it.
type Instance struct {
	Graph     *rendergraph.Graph
	Externals map[rendergraph.ResourceID]resource.Resource

	device resource.Device
}

// Close closes the graph and destroys the external resources.
func (in *Instance) Close() {
	in.Graph.Close()
	for _, r := range in.Externals {
		switch r := r.(type) {
		case *resource.Buffer:
			in.device.DestroyBuffer(r)
		case *resource.Texture:
			in.device.DestroyTexture(r)
		}
	}
	in.Externals = nil
}

// Build creates the file's external resources on device and a graph with
// its nodes. pipes serves compute nodes and may be nil when the graph is
// only planned or run without a GPU. opts are applied after the file's
// label and workers.
func (f *File) Build(device resource.Device, pipes *nodes.Pipelines, opts ...rendergraph.GraphOption) (*Instance, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var graphOpts []rendergraph.GraphOption
	if f.Label != "" {
		graphOpts = append(graphOpts, rendergraph.WithLabel(f.Label))
	}
	if f.Workers > 0 {
		graphOpts = append(graphOpts, rendergraph.WithWorkers(f.Workers))
	}
	in := &Instance{
		Graph:     rendergraph.NewGraph(append(graphOpts, opts...)...),
		Externals: make(map[rendergraph.ResourceID]resource.Resource),
		device:    device,
	}
	if err := f.build(in, pipes); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (f *File) build(in *Instance, pipes *nodes.Pipelines) error {
	for _, r := range f.Externals.Buffers {
		b, err := parseBuffer(r)
		if err != nil {
			return fmt.Errorf("graphfile: external %q: %w", r.ID, err)
		}
		buf, err := in.device.CreateBuffer(&resource.BufferDescriptor{
			Label: r.ID, ElementSize: b.spec.ElementSize, Count: b.spec.Count, Usage: b.usage,
		})
		if err != nil {
			return fmt.Errorf("graphfile: external %q: %w", r.ID, err)
		}
		if err := in.Graph.AddExternalBuffer(b.id, buf); err != nil {
			in.device.DestroyBuffer(buf)
			return err
		}
		in.Externals[b.id] = buf
	}
	for _, r := range f.Externals.Textures {
		t, err := parseTexture(r)
		if err != nil {
			return fmt.Errorf("graphfile: external %q: %w", r.ID, err)
		}
		tex, err := in.device.CreateTexture(&resource.TextureDescriptor{
			Label: r.ID, Width: t.spec.Width, Height: t.spec.Height, Format: t.spec.Format,
			Usage: t.usage, ClearColor: t.spec.ClearColor, ClearDepth: t.spec.ClearDepth,
		})
		if err != nil {
			return fmt.Errorf("graphfile: external %q: %w", r.ID, err)
		}
		if err := in.Graph.AddExternalTexture(t.id, tex); err != nil {
			in.device.DestroyTexture(tex)
			return err
		}
		in.Externals[t.id] = tex
	}

	for _, n := range f.Nodes {
		node, err := n.build(pipes)
		if err != nil {
			return fmt.Errorf("graphfile: node %q: %w", n.Name, err)
		}
		if err := in.Graph.AddNode(n.Name, node, n.Endpoint); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) build(pipes *nodes.Pipelines) (rendergraph.Node, error) {
	p, err := n.parse()
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case KindClearBuffer:
		if len(p.renames) == 1 {
			return &nodes.ClearBuffer{From: p.renames[0].from, Target: p.renames[0].to}, nil
		}
		out := p.outBuffers[0]
		return &nodes.ClearBuffer{Target: out.id, Spec: out.spec}, nil
	case KindCopyBuffer:
		out := p.outBuffers[0]
		return &nodes.CopyBuffer{Src: p.inBuffers[0].id, Dst: out.id, Spec: out.spec}, nil
	case KindCompute:
		c := &nodes.Compute{Source: n.Shader, EntryPoint: n.EntryPoint, Pipelines: pipes}
		copy(c.Workgroups[:], n.Workgroups)
		for _, in := range p.inBuffers {
			c.Inputs = append(c.Inputs, in.id)
		}
		for _, out := range p.outBuffers {
			c.Outputs = append(c.Outputs, nodes.BufferOutput{ID: out.id, Spec: out.spec})
		}
		return c, nil
	default:
		return p, nil
	}
}

type bufferDecl struct {
	id    rendergraph.ResourceID
	usage gputypes.BufferUsage
	spec  rendergraph.BufferSpec
}

type textureDecl struct {
	id    rendergraph.ResourceID
	usage gputypes.TextureUsage
	spec  rendergraph.TextureSpec
	// clearColor and clearDepth are false when the file left the default.
	clearColor, clearDepth bool
}

type renameDecl struct {
	from, to rendergraph.ResourceID
	buffer   gputypes.BufferUsage
	texture  gputypes.TextureUsage
}

// Pass is a node that only declares resources. It records nothing, which
// makes it the building block for planning graphs and dry runs.
type Pass struct {
	inBuffers   []bufferDecl
	inTextures  []textureDecl
	outBuffers  []bufferDecl
	outTextures []textureDecl
	renames     []renameDecl
}

// Setup implements rendergraph.Node.
func (p *Pass) Setup(ctx *rendergraph.SetupContext) {
	for _, b := range p.inBuffers {
		ctx.InputBuffer(b.id, b.usage)
	}
	for _, t := range p.inTextures {
		ctx.InputTexture(t.id, t.usage)
	}
	for _, b := range p.outBuffers {
		spec := ctx.OutputBuffer(b.id, b.usage)
		spec.ElementSize, spec.Count = b.spec.ElementSize, b.spec.Count
	}
	for _, t := range p.outTextures {
		spec := ctx.OutputTexture(t.id, t.usage)
		spec.Width, spec.Height, spec.Format = t.spec.Width, t.spec.Height, t.spec.Format
		if t.clearColor {
			spec.ClearColor = t.spec.ClearColor
		}
		if t.clearDepth {
			spec.ClearDepth = t.spec.ClearDepth
		}
	}
	for _, r := range p.renames {
		if r.texture != 0 {
			ctx.RenameTexture(r.from, r.to, r.texture)
		} else {
			ctx.RenameBuffer(r.from, r.to, r.buffer)
		}
	}
}

// Execute implements rendergraph.Node.
func (p *Pass) Execute(*rendergraph.ExecuteContext) error { return nil }

func (n *Node) parse() (*Pass, error) {
	p := &Pass{}
	var errs []error
	for _, r := range n.Inputs.Buffers {
		b, err := parseBuffer(r)
		errs = append(errs, err)
		p.inBuffers = append(p.inBuffers, b)
	}
	for _, r := range n.Inputs.Textures {
		t, err := parseTexture(r)
		errs = append(errs, err)
		p.inTextures = append(p.inTextures, t)
	}
	for _, r := range n.Outputs.Buffers {
		b, err := parseBuffer(r)
		errs = append(errs, err)
		p.outBuffers = append(p.outBuffers, b)
	}
	for _, r := range n.Outputs.Textures {
		t, err := parseTexture(r)
		errs = append(errs, err)
		p.outTextures = append(p.outTextures, t)
	}
	for _, r := range n.Renames {
		d := renameDecl{from: rendergraph.ResourceID(r.From), to: rendergraph.ResourceID(r.To)}
		var err error
		if r.Texture {
			d.texture, err = resource.ParseTextureUsage(r.Usage)
		} else {
			d.buffer, err = resource.ParseBufferUsage(r.Usage)
		}
		if err == nil && d.buffer == 0 && d.texture == 0 {
			err = fmt.Errorf("rename %q -> %q has no usage", r.From, r.To)
		}
		errs = append(errs, err)
		p.renames = append(p.renames, d)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return p, nil
}

func parseBuffer(r Resource) (bufferDecl, error) {
	u, err := resource.ParseBufferUsage(r.Usage)
	if err != nil {
		return bufferDecl{}, err
	}
	return bufferDecl{
		id:    rendergraph.ResourceID(r.ID),
		usage: u,
		spec:  rendergraph.BufferSpec{ElementSize: r.ElementSize, Count: r.Count},
	}, nil
}

func parseTexture(r Resource) (textureDecl, error) {
	u, err := resource.ParseTextureUsage(r.Usage)
	if err != nil {
		return textureDecl{}, err
	}
	d := textureDecl{
		id:    rendergraph.ResourceID(r.ID),
		usage: u,
		spec:  rendergraph.TextureSpec{Width: r.Width, Height: r.Height},
	}
	if r.Format != "" {
		if d.spec.Format, err = resource.ParseTextureFormat(r.Format); err != nil {
			return textureDecl{}, err
		}
	}
	switch len(r.ClearColor) {
	case 0:
	case 4:
		c := r.ClearColor
		d.spec.ClearColor = gputypes.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
		d.clearColor = true
	default:
		return textureDecl{}, fmt.Errorf("clearColor has %d components, want 4", len(r.ClearColor))
	}
	if r.ClearDepth != nil {
		d.spec.ClearDepth = *r.ClearDepth
		d.clearDepth = true
	}
	return d, nil
}
