package nodes

import (
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// ClearBuffer zero-fills Target.
//
// With From set, the node clears From in place and renames it to Target;
// otherwise Target is a new buffer described by Spec, or an external one.
type ClearBuffer struct {
	Target rendergraph.ResourceID
	From   rendergraph.ResourceID
	Spec   rendergraph.BufferSpec
}

// Setup implements rendergraph.Node.
func (n *ClearBuffer) Setup(ctx *rendergraph.SetupContext) {
	if n.From != "" {
		ctx.RenameBuffer(n.From, n.Target, gputypes.BufferUsageCopyDst)
		return
	}
	spec := ctx.OutputBuffer(n.Target, gputypes.BufferUsageCopyDst)
	spec.ElementSize, spec.Count = n.Spec.ElementSize, n.Spec.Count
	spec.Usage |= n.Spec.Usage
}

// Execute implements rendergraph.Node.
func (n *ClearBuffer) Execute(ctx *rendergraph.ExecuteContext) error {
	buf, err := ctx.Buffer(n.Target)
	if err != nil {
		return err
	}
	return ctx.Encode(func(rec resource.Recorder) error {
		enc := rec.Encoder()
		if enc == nil || buf.Raw() == nil {
			return nil
		}
		enc.ClearBuffer(buf.Raw(), 0, alignDown4(buf.Size()))
		slogger().Debug("nodes: clear buffer",
			slog.String("node", ctx.Node()),
			slog.String("buffer", buf.Label()),
			slog.Uint64("size", buf.Size()))
		return nil
	})
}

func alignDown4(n uint64) uint64 { return n &^ 3 }
