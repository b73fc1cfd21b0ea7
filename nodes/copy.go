package nodes

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// CopyBuffer copies all of Src into the start of Dst. Dst is a new buffer
// shaped like Spec, or an external one; either way it must be at least as
// large as Src.
type CopyBuffer struct {
	Src  rendergraph.ResourceID
	Dst  rendergraph.ResourceID
	Spec rendergraph.BufferSpec
}

// Setup implements rendergraph.Node.
func (n *CopyBuffer) Setup(ctx *rendergraph.SetupContext) {
	ctx.InputBuffer(n.Src, gputypes.BufferUsageCopySrc)
	spec := ctx.OutputBuffer(n.Dst, gputypes.BufferUsageCopyDst)
	spec.ElementSize, spec.Count = n.Spec.ElementSize, n.Spec.Count
	spec.Usage |= n.Spec.Usage
}

// Execute implements rendergraph.Node.
func (n *CopyBuffer) Execute(ctx *rendergraph.ExecuteContext) error {
	src, err := ctx.Buffer(n.Src)
	if err != nil {
		return err
	}
	dst, err := ctx.Buffer(n.Dst)
	if err != nil {
		return err
	}
	size := src.Size()
	if size > dst.Size() {
		return fmt.Errorf("nodes: copy %q (%d bytes) into %q (%d bytes): destination too small",
			n.Src, src.Size(), n.Dst, dst.Size())
	}
	return ctx.Encode(func(rec resource.Recorder) error {
		enc := rec.Encoder()
		if enc == nil || src.Raw() == nil || dst.Raw() == nil {
			return nil
		}
		enc.CopyBufferToBuffer(src.Raw(), dst.Raw(), []hal.BufferCopy{{Size: alignDown4(size)}})
		slogger().Debug("nodes: copy buffer",
			slog.String("node", ctx.Node()),
			slog.String("src", src.Label()),
			slog.String("dst", dst.Label()),
			slog.Uint64("size", size))
		return nil
	})
}
