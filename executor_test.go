package rendergraph

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/transient"
)

func newAllocator(t *testing.T, cfg transient.Config) (*transient.Allocator, *transient.FrameClock, *backend.HostDevice) {
	t.Helper()
	dev := &backend.HostDevice{}
	clock := transient.NewFrameClock(2)
	alloc, err := transient.New(dev, clock, cfg)
	if err != nil {
		t.Fatalf("transient.New() error = %v", err)
	}
	t.Cleanup(alloc.Close)
	return alloc, clock, dev
}

func barrierStrings(barriers []resource.Barrier) []string {
	out := make([]string, len(barriers))
	for i, b := range barriers {
		out[i] = b.String()
	}
	return out
}

func setUp(t *testing.T, g *Graph) {
	t.Helper()
	if err := g.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
}

// =============================================================================
// Execution
// =============================================================================

func TestExecute_Diamond(t *testing.T) {
	defs := diamond()
	g := newTestGraph(t, defs)
	setUp(t, g)
	alloc, clock, _ := newAllocator(t, transient.Config{})

	rec := resource.NewLog(nil)
	if err := g.Execute(alloc, &FrameContext{Recorder: rec}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{
		// level 0
		"Transition(R0 None -> Storage)",
		// level 1
		"UAV(R0)",
		"Transition(R1 None -> Storage)",
		"Transition(R2 None -> Storage)",
		// level 2: R3 is placed where R0 lived
		"Aliasing(R0 -> R3)",
		"UAV(R1)",
		"UAV(R2)",
		"Transition(R3 None -> Storage)",
		// level 3
		"UAV(R3)",
	}
	if diff := cmp.Diff(want, barrierStrings(rec.Recorded())); diff != "" {
		t.Errorf("barriers mismatch (-want +got):\n%s", diff)
	}

	wantStats := FrameStats{
		Levels:           4,
		Nodes:            5,
		Allocations:      4,
		Releases:         4,
		Transitions:      4,
		UAVBarriers:      4,
		AliasingBarriers: 1,
	}
	if diff := cmp.Diff(wantStats, g.Stats()); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
	for _, d := range defs {
		if runs := d.node.(*testNode).runs; runs != 1 {
			t.Errorf("%s ran %d times", d.name, runs)
		}
	}
	if live := alloc.Stats().LiveResources; live != 0 {
		t.Errorf("LiveResources = %d after frame", live)
	}

	// The next frame reuses the heap from the top without aliasing against
	// the previous frame.
	clock.Advance()
	if err := alloc.PreUpdate(); err != nil {
		t.Fatalf("PreUpdate() error = %v", err)
	}
	rec.Reset()
	if err := g.Execute(alloc, &FrameContext{Recorder: rec}); err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if got := g.Stats(); got.Frame != 1 || got.AliasingBarriers != 1 {
		t.Errorf("second frame Stats() = %+v", got)
	}
}

func TestExecute_RefcountSoundness(t *testing.T) {
	g := newTestGraph(t, []nodeDef{
		{"Init", &testNode{out: rids("P0")}, false},
		{"Step1", &testNode{renames: []Rename{{From: "P0", To: "P1"}}}, false},
		{"Side", &testNode{in: rids("ext"), out: rids("S")}, false},
		{"Step2", &testNode{in: rids("S"), renames: []Rename{{From: "P1", To: "P2"}}}, false},
		{"Read", &testNode{in: rids("P2")}, true},
	})
	externalBuffer(t, g, "ext", gputypes.BufferUsageStorage)
	setUp(t, g)
	alloc, _, _ := newAllocator(t, transient.Config{})

	// Count touches per resolved resource the way nodes see them.
	touches := make(map[ResourceID]int)
	for _, level := range g.Levels() {
		for _, name := range level {
			ctx := g.nodes[g.byName[name]].ctx
			for _, id := range append(ctx.Inputs(), ctx.Outputs()...) {
				touches[resolveForTest(g, id)]++
			}
		}
	}
	if diff := cmp.Diff(g.Lifetimes(), touches); diff != "" {
		t.Errorf("touch counts differ from Lifetimes() (-want +got):\n%s", diff)
	}

	if err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil)}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if st := g.Stats(); st.Allocations != 2 || st.Releases != 2 {
		t.Errorf("Stats() = %+v, want 2 allocations and releases", st)
	}
}

// resolveForTest follows renames declared anywhere in the graph.
func resolveForTest(g *Graph, id ResourceID) ResourceID {
	for {
		found := false
		for _, n := range g.nodes {
			for _, r := range n.ctx.Renames() {
				if r.To == id {
					id, found = r.From, true
				}
			}
		}
		if !found {
			return id
		}
	}
}

func TestExecute_NodeView(t *testing.T) {
	var sawScene any
	var declaredErr, undeclaredErr error
	reader := &testNode{in: rids("R0"), run: func(ctx *ExecuteContext) error {
		sawScene = ctx.Scene()
		_, declaredErr = ctx.Buffer("R0")
		_, undeclaredErr = ctx.Buffer("R1")
		return nil
	}}
	g := newTestGraph(t, []nodeDef{
		{"Source", &testNode{out: rids("R0")}, false},
		{"Reader", reader, true},
	})
	setUp(t, g)
	alloc, _, _ := newAllocator(t, transient.Config{})

	scene := &struct{ particles int }{particles: 1024}
	if err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil), Scene: scene}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sawScene != scene {
		t.Error("scene was not passed through")
	}
	if declaredErr != nil {
		t.Errorf("Buffer(R0) error = %v", declaredErr)
	}
	if !errors.Is(undeclaredErr, ErrResourceNotDeclared) {
		t.Errorf("Buffer(R1) error = %v, want ErrResourceNotDeclared", undeclaredErr)
	}
}

func TestExecute_ClearsRenderTargets(t *testing.T) {
	draw := FuncNode{SetupFunc: func(ctx *SetupContext) {
		color := ctx.OutputTexture("color", gputypes.TextureUsageRenderAttachment)
		color.Width, color.Height = 64, 64
		color.Format = gputypes.TextureFormatRGBA8Unorm
		color.ClearColor = gputypes.Color{R: 0.2, A: 1}

		depth := ctx.OutputTexture("depth", gputypes.TextureUsageRenderAttachment)
		depth.Width, depth.Height = 64, 64
		depth.Format = gputypes.TextureFormatDepth32Float

		// Storage outputs are fully written and need no clear.
		mask := ctx.OutputTexture("mask", gputypes.TextureUsageStorageBinding)
		mask.Width, mask.Height = 64, 64
		mask.Format = gputypes.TextureFormatR32Float
	}}
	present := FuncNode{SetupFunc: func(ctx *SetupContext) {
		ctx.InputTexture("color", gputypes.TextureUsageTextureBinding)
		ctx.InputTexture("depth", gputypes.TextureUsageTextureBinding)
		ctx.InputTexture("mask", gputypes.TextureUsageTextureBinding)
	}}
	g := newTestGraph(t, []nodeDef{{"Draw", draw, false}, {"Present", present, true}})
	setUp(t, g)
	alloc, _, _ := newAllocator(t, transient.Config{})

	rec := resource.NewLog(nil)
	if err := g.Execute(alloc, &FrameContext{Recorder: rec}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	cleared := rec.Cleared()
	if len(cleared) != 2 {
		t.Fatalf("cleared %d textures, want 2", len(cleared))
	}
	if cleared[0].Label() != "color" || cleared[0].Descriptor().ClearColor.R != 0.2 {
		t.Errorf("first clear = %s %+v", cleared[0].Label(), cleared[0].Descriptor().ClearColor)
	}
	if cleared[1].Label() != "depth" || cleared[1].Descriptor().ClearDepth != 1 {
		t.Errorf("second clear = %s depth %v", cleared[1].Label(), cleared[1].Descriptor().ClearDepth)
	}
	// Created with every usage the graph declares.
	want := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	if got := cleared[0].Usage(); got != want {
		t.Errorf("color usage = %#x, want %#x", got, want)
	}
}

func TestExecute_ExternalState(t *testing.T) {
	g := newTestGraph(t, []nodeDef{
		{"Write", &testNode{out: rids("ext")}, false},
		{"Read", FuncNode{SetupFunc: func(ctx *SetupContext) {
			ctx.InputBuffer("ext", gputypes.BufferUsageCopySrc)
		}}, true},
	})
	ext := externalBuffer(t, g, "ext", gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	setUp(t, g)

	// No transients: the allocator may be omitted.
	rec := resource.NewLog(nil)
	if err := g.Execute(nil, &FrameContext{Recorder: rec}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ext.State() != gputypes.BufferUsageCopySrc {
		t.Errorf("external state = %#x, want CopySrc", ext.State())
	}
	want := []string{
		"Transition(ext None -> Storage)",
		"Transition(ext Storage -> CopySrc)",
	}
	if diff := cmp.Diff(want, barrierStrings(rec.Recorded())); diff != "" {
		t.Errorf("barriers mismatch (-want +got):\n%s", diff)
	}

	// The state carries into the next frame.
	rec.Reset()
	if err := g.Execute(nil, &FrameContext{Recorder: rec}); err != nil {
		t.Fatal(err)
	}
	if got := barrierStrings(rec.Recorded()); len(got) != 2 || got[0] != "Transition(ext CopySrc -> Storage)" {
		t.Errorf("second frame barriers = %v", got)
	}
}

func TestExecute_MergedReadUsages(t *testing.T) {
	reader := func(u gputypes.BufferUsage) Node {
		return FuncNode{SetupFunc: func(ctx *SetupContext) { ctx.InputBuffer("X", u) }}
	}
	g := newTestGraph(t, []nodeDef{
		{"Uniform", reader(gputypes.BufferUsageUniform), true},
		{"Copy", reader(gputypes.BufferUsageCopySrc), true},
	})
	ext := externalBuffer(t, g, "X", gputypes.BufferUsageUniform|gputypes.BufferUsageCopySrc)
	setUp(t, g)
	if diff := cmp.Diff([][]string{{"Uniform", "Copy"}}, g.Levels()); diff != "" {
		t.Errorf("Levels() mismatch (-want +got):\n%s", diff)
	}

	rec := resource.NewLog(nil)
	if err := g.Execute(nil, &FrameContext{Recorder: rec}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := []string{"Transition(X None -> CopySrc|Uniform)"}
	if diff := cmp.Diff(want, barrierStrings(rec.Recorded())); diff != "" {
		t.Errorf("barriers mismatch (-want +got):\n%s", diff)
	}
	if got, want := ext.State(), gputypes.BufferUsageUniform|gputypes.BufferUsageCopySrc; got != want {
		t.Errorf("external state = %#x, want %#x", got, want)
	}
}

// =============================================================================
// Failures
// =============================================================================

func TestExecute_Preconditions(t *testing.T) {
	g := newTestGraph(t, diamond())
	if err := g.Execute(nil, &FrameContext{Recorder: resource.NewLog(nil)}); !errors.Is(err, ErrNotSetUp) {
		t.Errorf("before Setup: %v, want ErrNotSetUp", err)
	}
	setUp(t, g)
	if err := g.Execute(nil, &FrameContext{}); !errors.Is(err, ErrNoRecorder) {
		t.Errorf("no recorder: %v, want ErrNoRecorder", err)
	}
	if err := g.Execute(nil, &FrameContext{Recorder: resource.NewLog(nil)}); !errors.Is(err, ErrNoAllocator) {
		t.Errorf("no allocator: %v, want ErrNoAllocator", err)
	}
}

func TestExecute_NodeErrorReleases(t *testing.T) {
	boom := errors.New("boom")
	defs := diamond()
	defs[3].node = &testNode{in: rids("R1", "R2"), out: rids("R3"), run: func(*ExecuteContext) error {
		return boom
	}}
	g := newTestGraph(t, defs)
	setUp(t, g)
	alloc, clock, _ := newAllocator(t, transient.Config{})

	err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil)})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want boom", err)
	}
	if live := alloc.Stats().LiveResources; live != 0 {
		t.Errorf("LiveResources = %d after failed frame", live)
	}
	if runs := defs[4].node.(*testNode).runs; runs != 0 {
		t.Errorf("Sink ran %d times after a failed level", runs)
	}
	clock.Advance()
	if err := alloc.PreUpdate(); err != nil {
		t.Errorf("PreUpdate() after failed frame = %v", err)
	}
}

func TestExecute_OutOfMemory(t *testing.T) {
	g := newTestGraph(t, diamond())
	setUp(t, g)
	// Room for exactly two aligned resources; level 1 needs three.
	alloc, _, _ := newAllocator(t, transient.Config{HeapSize: 2 * transient.DefaultAlignment})

	err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil)})
	if !errors.Is(err, transient.ErrOutOfMemory) {
		t.Fatalf("Execute() error = %v, want ErrOutOfMemory", err)
	}
	if live := alloc.Stats().LiveResources; live != 0 {
		t.Errorf("LiveResources = %d after failed frame", live)
	}
}

// =============================================================================
// Level-parallel execution
// =============================================================================

func TestExecute_Workers(t *testing.T) {
	const fan = 16
	var ran atomic.Int32
	var encoded int // guarded by Encode

	defs := []nodeDef{{"Source", &testNode{out: rids("src")}, false}}
	sinkIn := make([]ResourceID, 0, fan)
	for i := range fan {
		out := ResourceID("part" + string(rune('a'+i)))
		sinkIn = append(sinkIn, out)
		defs = append(defs, nodeDef{string(out), &testNode{
			in:  rids("src"),
			out: rids(out),
			run: func(ctx *ExecuteContext) error {
				ran.Add(1)
				return ctx.Encode(func(rec resource.Recorder) error {
					encoded++
					return nil
				})
			},
		}, false})
	}
	defs = append(defs, nodeDef{"Sink", &testNode{in: sinkIn}, true})

	g := newTestGraph(t, defs, WithWorkers(4), WithLabel("fan"))
	setUp(t, g)
	if g.Label() != "fan" {
		t.Errorf("Label() = %q", g.Label())
	}
	if levels := g.Levels(); len(levels) != 3 || len(levels[1]) != fan {
		t.Fatalf("Levels() = %v", levels)
	}
	alloc, _, _ := newAllocator(t, transient.Config{})

	if err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil)}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ran.Load() != fan || encoded != fan {
		t.Errorf("ran = %d, encoded = %d, want %d", ran.Load(), encoded, fan)
	}

	// A closed pool falls back to serial execution.
	g.Close()
	if err := g.Execute(alloc, &FrameContext{Recorder: resource.NewLog(nil)}); err != nil {
		t.Fatalf("Execute() after Close error = %v", err)
	}
	if ran.Load() != 2*fan {
		t.Errorf("ran = %d after second frame, want %d", ran.Load(), 2*fan)
	}
}
