package graphfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/transient"
)

const deferredRename = `
label: deferred
externals:
  textures:
    - {id: backbuffer, usage: RenderAttachment|CopyDst, width: 64, height: 64, format: BGRA8Unorm}
nodes:
  - name: gbuffer
    outputs:
      textures:
        - {id: albedo, usage: RenderAttachment, width: 64, height: 64, format: rgba8unorm, clearColor: [0, 0, 0, 0]}
        - {id: depth, usage: RenderAttachment, width: 64, height: 64, format: Depth32Float, clearDepth: 0}
  - name: lighting
    inputs:
      textures:
        - {id: albedo, usage: TextureBinding}
        - {id: depth, usage: TextureBinding}
    outputs:
      textures:
        - {id: lit, usage: RenderAttachment, width: 64, height: 64, format: RGBA16Float}
  - name: tonemap
    renames:
      - {from: lit, to: mapped, usage: StorageBinding, texture: true}
  - name: present
    endpoint: true
    inputs:
      textures: [{id: mapped, usage: CopySrc}]
    outputs:
      textures: [{id: backbuffer, usage: CopyDst}]
  - name: debug
    inputs:
      textures: [{id: depth, usage: CopySrc}]
    outputs:
      buffers: [{id: dump, usage: CopyDst, elementSize: 4, count: 4096}]
`

func build(t *testing.T, src string) (*Instance, *backend.HostDevice) {
	t.Helper()
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	dev := &backend.HostDevice{}
	in, err := f.Build(dev, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(in.Close)
	return in, dev
}

// =============================================================================
// Planning
// =============================================================================

func TestBuild_Pass(t *testing.T) {
	in, dev := build(t, deferredRename)
	g := in.Graph

	if g.Label() != "deferred" {
		t.Errorf("Label() = %q", g.Label())
	}
	if err := g.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	want := [][]string{{"gbuffer"}, {"lighting"}, {"tonemap"}, {"present"}}
	if diff := cmp.Diff(want, g.Levels()); diff != "" {
		t.Errorf("Levels() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"debug"}, g.Culled()); diff != "" {
		t.Errorf("Culled() mismatch (-want +got):\n%s", diff)
	}
	wantLife := map[rendergraph.ResourceID]int{
		"albedo": 2, "depth": 2, "lit": 4, "backbuffer": 1,
	}
	if diff := cmp.Diff(wantLife, g.Lifetimes()); diff != "" {
		t.Errorf("Lifetimes() mismatch (-want +got):\n%s", diff)
	}

	ext, ok := in.Externals["backbuffer"].(*resource.Texture)
	if !ok || ext.Descriptor().Format != gputypes.TextureFormatBGRA8Unorm {
		t.Fatalf("backbuffer external = %#v", in.Externals["backbuffer"])
	}
	in.Close()
	if dev.Live() != 0 {
		t.Errorf("Live() after Close = %d, want 0", dev.Live())
	}
}

func TestBuild_ClearValues(t *testing.T) {
	f, err := Parse([]byte(deferredRename))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, err := f.Nodes[0].parse()
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	albedo, depth := p.outTextures[0], p.outTextures[1]
	if !albedo.clearColor || albedo.spec.ClearColor != (gputypes.Color{}) {
		t.Errorf("albedo clear color = %v, %v", albedo.clearColor, albedo.spec.ClearColor)
	}
	if albedo.clearDepth {
		t.Error("albedo clear depth should keep the default")
	}
	if !depth.clearDepth || depth.spec.ClearDepth != 0 {
		t.Errorf("depth clear depth = %v, %v", depth.clearDepth, depth.spec.ClearDepth)
	}
}

// =============================================================================
// GPU node kinds
// =============================================================================

const computeGraph = `
label: compute
workers: 2
externals:
  buffers:
    - {id: result, usage: CopyDst|MapRead, elementSize: 4, count: 256}
nodes:
  - name: seed
    kind: clearBuffer
    outputs:
      buffers: [{id: src, usage: CopyDst, elementSize: 4, count: 256}]
  - name: double
    kind: compute
    shader: "@compute @workgroup_size(64) fn main() {}"
    workgroups: [4]
    inputs:
      buffers: [{id: src, usage: Storage}]
    outputs:
      buffers: [{id: dst, usage: Storage, elementSize: 4, count: 256}]
  - name: readback
    kind: copyBuffer
    endpoint: true
    inputs:
      buffers: [{id: dst, usage: CopySrc}]
    outputs:
      buffers: [{id: result, usage: CopyDst}]
`

func TestBuild_NodeKinds(t *testing.T) {
	in, dev := build(t, computeGraph)
	g := in.Graph
	if err := g.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if diff := cmp.Diff([][]string{{"seed"}, {"double"}, {"readback"}}, g.Levels()); diff != "" {
		t.Errorf("Levels() mismatch (-want +got):\n%s", diff)
	}

	alloc, err := transient.New(dev, transient.NewFrameClock(2), transient.Config{})
	if err != nil {
		t.Fatalf("transient.New() error = %v", err)
	}
	defer alloc.Close()
	log := resource.NewLog(nil)
	if err := g.Execute(alloc, &rendergraph.FrameContext{Recorder: log}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := g.Stats().Allocations; got != 2 {
		t.Errorf("Stats().Allocations = %d, want 2", got)
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		invalid bool
	}{
		{"unknown field", "nodes: [{name: a, color: red}]", false},
		{"no nodes", "label: empty", true},
		{"unnamed node", "nodes: [{kind: pass}]", true},
		{"unknown kind", "nodes: [{name: a, kind: draw}]", true},
		{"clear without target", "nodes: [{name: a, kind: clearBuffer}]", true},
		{"copy without input", "nodes: [{name: a, kind: copyBuffer, outputs: {buffers: [{id: b, usage: CopyDst}]}}]", true},
		{"compute without shader", "nodes: [{name: a, kind: compute}]", true},
		{"negative workers", "workers: -1\nnodes: [{name: a}]", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("Parse() succeeded")
			}
			if got := errors.Is(err, ErrInvalidFile); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidFile) = %v for %v", got, err)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad usage", "nodes: [{name: a, outputs: {buffers: [{id: b, usage: Sparkle}]}}]"},
		{"bad format", "nodes: [{name: a, outputs: {textures: [{id: t, usage: RenderAttachment, format: BC1RGBAUnorm}]}}]"},
		{"bad clear color", "nodes: [{name: a, outputs: {textures: [{id: t, usage: RenderAttachment, clearColor: [1]}]}}]"},
		{"rename without usage", "nodes: [{name: a, renames: [{from: x, to: y}]}]"},
		{"duplicate node", "nodes: [{name: a}, {name: a}]"},
		{"duplicate external", "externals: {buffers: [{id: x, usage: Storage, elementSize: 4, count: 1}, {id: x, usage: Storage, elementSize: 4, count: 1}]}\nnodes: [{name: a}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.src))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			dev := &backend.HostDevice{}
			if _, err := f.Build(dev, nil); err == nil {
				t.Fatal("Build() succeeded")
			}
			if dev.Live() != 0 {
				t.Errorf("failed Build left %d externals", dev.Live())
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	if err := os.WriteFile(path, []byte(computeGraph), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Label != "compute" || f.Workers != 2 || len(f.Nodes) != 3 {
		t.Errorf("Load() = %+v", f)
	}

	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if diff := cmp.Diff(f, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
