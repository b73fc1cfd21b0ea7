package nodes

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// DefaultWorkgroupSize is the workgroup size assumed when a Compute node
// derives its dispatch size.
const DefaultWorkgroupSize = 64

// ErrNoPipelines is returned by a Compute node that has to record GPU
// work but was given no Pipelines cache.
var ErrNoPipelines = errors.New("nodes: compute node has no pipeline cache")

// BufferOutput is a buffer a Compute node writes.
type BufferOutput struct {
	ID   rendergraph.ResourceID
	Spec rendergraph.BufferSpec
}

// Compute dispatches a WGSL compute shader.
//
// The shader sees one bind group: Inputs as read-only storage buffers at
// bindings 0..len(Inputs)-1, followed by Outputs as read-write storage
// buffers. With Workgroups zero, the node dispatches
// ceil(count/WorkgroupSize) groups along x, where count is the element
// count of the first output.
type Compute struct {
	Source        string
	EntryPoint    string // defaults to "main"
	Inputs        []rendergraph.ResourceID
	Outputs       []BufferOutput
	Workgroups    [3]uint32
	WorkgroupSize uint32 // defaults to DefaultWorkgroupSize
	Pipelines     *Pipelines
}

// Setup implements rendergraph.Node.
func (n *Compute) Setup(ctx *rendergraph.SetupContext) {
	for _, id := range n.Inputs {
		ctx.InputBuffer(id, gputypes.BufferUsageStorage)
	}
	for _, out := range n.Outputs {
		spec := ctx.OutputBuffer(out.ID, gputypes.BufferUsageStorage)
		spec.ElementSize, spec.Count = out.Spec.ElementSize, out.Spec.Count
		spec.Usage |= out.Spec.Usage
	}
}

// Execute implements rendergraph.Node.
func (n *Compute) Execute(ctx *rendergraph.ExecuteContext) error {
	bufs := make([]*resource.Buffer, 0, len(n.Inputs)+len(n.Outputs))
	for _, id := range n.Inputs {
		b, err := ctx.Buffer(id)
		if err != nil {
			return err
		}
		bufs = append(bufs, b)
	}
	for _, out := range n.Outputs {
		b, err := ctx.Buffer(out.ID)
		if err != nil {
			return err
		}
		bufs = append(bufs, b)
	}

	return ctx.Encode(func(rec resource.Recorder) error {
		enc := rec.Encoder()
		if enc == nil || !allRaw(bufs) {
			return nil
		}
		if n.Pipelines == nil {
			return ErrNoPipelines
		}
		pl, err := n.Pipelines.pipeline(n.key())
		if err != nil {
			return err
		}
		group, err := n.Pipelines.bindGroup(pl, bufs)
		if err != nil {
			return err
		}

		x, y, z := n.dispatchSize(bufs)
		if x == 0 || y == 0 || z == 0 {
			return nil
		}
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: ctx.Node()})
		pass.SetPipeline(pl.compute)
		pass.SetBindGroup(0, group, nil)
		pass.Dispatch(x, y, z)
		pass.End()

		slogger().Debug("nodes: dispatched compute",
			slog.String("node", ctx.Node()),
			slog.Uint64("x", uint64(x)),
			slog.Uint64("y", uint64(y)),
			slog.Uint64("z", uint64(z)))
		return nil
	})
}

func (n *Compute) key() pipelineKey {
	entry := n.EntryPoint
	if entry == "" {
		entry = "main"
	}
	return pipelineKey{source: n.Source, entry: entry, reads: len(n.Inputs), writes: len(n.Outputs)}
}

func (n *Compute) dispatchSize(bufs []*resource.Buffer) (x, y, z uint32) {
	if n.Workgroups != [3]uint32{} {
		return n.Workgroups[0], max(n.Workgroups[1], 1), max(n.Workgroups[2], 1)
	}
	if len(n.Outputs) == 0 {
		return 0, 0, 0
	}
	size := n.WorkgroupSize
	if size == 0 {
		size = DefaultWorkgroupSize
	}
	count := bufs[len(n.Inputs)].Descriptor().Count
	return (count + size - 1) / size, 1, 1
}

func allRaw(bufs []*resource.Buffer) bool {
	for _, b := range bufs {
		if b.Raw() == nil {
			return false
		}
	}
	return true
}
