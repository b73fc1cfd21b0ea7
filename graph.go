package rendergraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/gogpu/rendergraph/internal/parallel"
	"github.com/gogpu/rendergraph/resource"
)

// nodeEntry is a node registered with AddNode.
type nodeEntry struct {
	name     string
	node     Node
	endpoint bool
	ctx      *SetupContext
}

// Graph is a frame graph: a set of nodes, the external resources they
// share with the rest of the application, and, after Setup, the schedule
// that orders them.
//
// A Graph is configured once and executed every frame. Adding nodes or
// externals discards the schedule until Setup is called again.
//
// Graph is not safe for concurrent use.
type Graph struct {
	opts graphOptions

	nodes     []*nodeEntry
	byName    map[string]int
	externals map[ResourceID]resource.Resource

	sched *schedule
	pool  *parallel.WorkerPool
	stats FrameStats
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	g := &Graph{
		opts:      o,
		byName:    make(map[string]int),
		externals: make(map[ResourceID]resource.Resource),
	}
	if o.workers > 1 {
		g.pool = parallel.NewWorkerPool(o.workers)
	}
	return g
}

// Label returns the graph's label.
func (g *Graph) Label() string { return g.opts.label }

// AddNode registers a node under a unique name. Endpoint nodes are the
// sinks the schedule is built backward from; nodes that no endpoint
// depends on are culled.
func (g *Graph) AddNode(name string, n Node, endpoint bool) error {
	if name == "" || n == nil {
		return fmt.Errorf("%w: name %q", ErrInvalidNode, name)
	}
	if _, ok := g.byName[name]; ok {
		return fmt.Errorf("%w: node %q", ErrDuplicateDeclaration, name)
	}
	g.byName[name] = len(g.nodes)
	g.nodes = append(g.nodes, &nodeEntry{name: name, node: n, endpoint: endpoint})
	g.sched = nil
	return nil
}

// AddExternalBuffer binds id to a buffer owned by the caller. The binding
// cannot be changed; the buffer's usage state may.
func (g *Graph) AddExternalBuffer(id ResourceID, b *resource.Buffer) error {
	if b == nil {
		return fmt.Errorf("%w: external %q is nil", ErrUnknownResource, id)
	}
	return g.addExternal(id, b)
}

// AddExternalTexture binds id to a texture owned by the caller.
func (g *Graph) AddExternalTexture(id ResourceID, t *resource.Texture) error {
	if t == nil {
		return fmt.Errorf("%w: external %q is nil", ErrUnknownResource, id)
	}
	return g.addExternal(id, t)
}

func (g *Graph) addExternal(id ResourceID, r resource.Resource) error {
	if _, ok := g.externals[id]; ok {
		return fmt.Errorf("%w: external %q", ErrDuplicateDeclaration, id)
	}
	g.externals[id] = r
	g.sched = nil
	return nil
}

// External returns the resource bound to id by AddExternalBuffer or
// AddExternalTexture.
func (g *Graph) External(id ResourceID) (resource.Resource, bool) {
	r, ok := g.externals[id]
	return r, ok
}

// Setup calls every node's Setup, builds the depth levels and computes
// resource lifetimes. On error the graph stays un-built.
func (g *Graph) Setup() error {
	g.sched = nil

	var errs []error
	for _, n := range g.nodes {
		n.ctx = newSetupContext(n.name)
		n.node.Setup(n.ctx)
		if err := n.ctx.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	externals := slices.Sorted(maps.Keys(g.externals))
	b := newBuilder(g.nodes, externals)
	if err := b.build(); err != nil {
		return err
	}
	s, err := b.resolveLifetimes(g.externals)
	if err != nil {
		return err
	}
	g.sched = s

	for _, c := range s.culled {
		slogger().Warn("rendergraph: node culled", "graph", g.opts.label, "node", g.nodes[c].name)
	}
	slogger().Info("rendergraph: graph set up",
		slog.String("graph", g.opts.label),
		slog.Int("nodes", len(g.nodes)),
		slog.Int("levels", len(s.levels)),
		slog.Int("culled", len(s.culled)),
		slog.Int("transients", s.transientCount()))
	return nil
}

// IsSetUp reports whether the graph has a schedule.
func (g *Graph) IsSetUp() bool { return g.sched != nil }

// Levels returns the node names of each depth level in execution order.
// Within a level, nodes are in AddNode order.
func (g *Graph) Levels() [][]string {
	if g.sched == nil {
		return nil
	}
	out := make([][]string, len(g.sched.levels))
	for i, level := range g.sched.levels {
		out[i] = g.names(level)
	}
	return out
}

// Dependencies returns, for each scheduled node, the nodes that consume
// one of its outputs.
func (g *Graph) Dependencies() map[string][]string {
	if g.sched == nil {
		return nil
	}
	out := make(map[string][]string)
	for _, level := range g.sched.levels {
		for _, n := range level {
			out[g.nodes[n].name] = g.names(g.sched.adjacency[n])
		}
	}
	return out
}

// StartPoints returns the nodes whose inputs are all external.
func (g *Graph) StartPoints() []string {
	if g.sched == nil {
		return nil
	}
	return g.names(g.sched.startPoints)
}

// Culled returns the nodes no endpoint depends on. They are never run.
func (g *Graph) Culled() []string {
	if g.sched == nil {
		return nil
	}
	return g.names(g.sched.culled)
}

// Lifetimes returns the reference count of every resolved resource: how
// many inputs and outputs touch it over one frame. Renamed resources count
// under the ID they were first produced as.
func (g *Graph) Lifetimes() map[ResourceID]int {
	if g.sched == nil {
		return nil
	}
	return g.sched.lifetimes()
}

// Stats returns statistics of the last executed frame.
func (g *Graph) Stats() FrameStats { return g.stats }

// Close stops the worker pool, if any. The graph can still execute
// serially afterwards.
func (g *Graph) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}

func (g *Graph) names(nodes []int) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = g.nodes[n].name
	}
	return out
}

func (s *schedule) transientCount() int {
	n := 0
	for _, a := range s.allocs {
		n += len(a)
	}
	return n
}
