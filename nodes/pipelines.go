package nodes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/internal/cache"
	"github.com/gogpu/rendergraph/resource"
)

// Default cache limits.
const (
	DefaultMaxPipelines  = 64
	DefaultMaxBindGroups = 256
)

// PipelinesConfig configures a Pipelines cache.
type PipelinesConfig struct {
	// MaxPipelines bounds the number of compiled pipelines.
	// Defaults to DefaultMaxPipelines if <= 0.
	MaxPipelines int

	// MaxBindGroups bounds the number of bind groups. Transient buffers
	// change every frame, so bind groups churn; the limit should cover a
	// few frames of compute nodes. Defaults to DefaultMaxBindGroups if <= 0.
	MaxBindGroups int
}

func (c PipelinesConfig) withDefaults() PipelinesConfig {
	if c.MaxPipelines <= 0 {
		c.MaxPipelines = DefaultMaxPipelines
	}
	if c.MaxBindGroups <= 0 {
		c.MaxBindGroups = DefaultMaxBindGroups
	}
	return c
}

// pipelineKey identifies a compute pipeline: one shader entry point and the
// shape of its single bind group.
type pipelineKey struct {
	source string
	entry  string
	reads  int
	writes int
}

// pipeline owns the HAL objects of one compute pipeline.
type pipeline struct {
	key            pipelineKey
	module         hal.ShaderModule
	groupLayout    hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	compute        hal.ComputePipeline
}

type groupKey struct {
	pipeline *pipeline
	buffers  string
}

// Pipelines caches compute pipelines and bind groups on one HAL device.
// Evicted objects are destroyed.
//
// Pipelines is safe for concurrent use.
type Pipelines struct {
	device    hal.Device
	pipelines *cache.Cache[pipelineKey, *pipeline]
	groups    *cache.Cache[groupKey, hal.BindGroup]
}

// NewPipelines creates an empty cache on device.
func NewPipelines(device hal.Device, config PipelinesConfig) *Pipelines {
	config = config.withDefaults()
	p := &Pipelines{device: device}
	p.pipelines = cache.New(config.MaxPipelines, func(_ pipelineKey, pl *pipeline) {
		p.destroyPipeline(pl)
	})
	p.groups = cache.New(config.MaxBindGroups, func(_ groupKey, g hal.BindGroup) {
		device.DestroyBindGroup(g)
	})
	return p
}

// Close destroys every cached object.
func (p *Pipelines) Close() {
	p.groups.Purge()
	p.pipelines.Purge()
}

// Stats returns the pipeline and bind group cache statistics.
func (p *Pipelines) Stats() (pipelines, groups cache.Stats) {
	return p.pipelines.Stats(), p.groups.Stats()
}

func (p *Pipelines) pipeline(key pipelineKey) (*pipeline, error) {
	return p.pipelines.GetOrCreate(key, func() (*pipeline, error) {
		return p.createPipeline(key)
	})
}

func (p *Pipelines) createPipeline(key pipelineKey) (*pipeline, error) {
	spirv, err := compileWGSL(key.source)
	if err != nil {
		return nil, err
	}
	label := "compute_" + key.entry
	pl := &pipeline{key: key}

	pl.module, err = p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("nodes: create shader module: %w", err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, key.reads+key.writes)
	for i := range key.reads + key.writes {
		typ := gputypes.BufferBindingTypeStorage
		if i < key.reads {
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	pl.groupLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		p.destroyPipeline(pl)
		return nil, fmt.Errorf("nodes: create bind group layout: %w", err)
	}

	pl.pipelineLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{pl.groupLayout},
	})
	if err != nil {
		p.destroyPipeline(pl)
		return nil, fmt.Errorf("nodes: create pipeline layout: %w", err)
	}

	pl.compute, err = p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: pl.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     pl.module,
			EntryPoint: key.entry,
		},
	})
	if err != nil {
		p.destroyPipeline(pl)
		return nil, fmt.Errorf("nodes: create compute pipeline: %w", err)
	}

	slogger().Debug("nodes: compute pipeline created",
		slog.String("entry", key.entry),
		slog.Int("bindings", len(entries)),
		slog.Int("spirv_words", len(spirv)))
	return pl, nil
}

// destroyPipeline releases whatever part of pl was created.
func (p *Pipelines) destroyPipeline(pl *pipeline) {
	if pl.compute != nil {
		p.device.DestroyComputePipeline(pl.compute)
	}
	if pl.pipelineLayout != nil {
		p.device.DestroyPipelineLayout(pl.pipelineLayout)
	}
	if pl.groupLayout != nil {
		p.device.DestroyBindGroupLayout(pl.groupLayout)
	}
	if pl.module != nil {
		p.device.DestroyShaderModule(pl.module)
	}
}

// bindGroup returns the bind group binding bufs, in order, to pl's layout.
func (p *Pipelines) bindGroup(pl *pipeline, bufs []*resource.Buffer) (hal.BindGroup, error) {
	var sb strings.Builder
	for _, b := range bufs {
		fmt.Fprintf(&sb, "%p;", b.Raw())
	}
	key := groupKey{pipeline: pl, buffers: sb.String()}

	return p.groups.GetOrCreate(key, func() (hal.BindGroup, error) {
		entries := make([]gputypes.BindGroupEntry, len(bufs))
		for i, b := range bufs {
			entries[i] = gputypes.BindGroupEntry{
				Binding: uint32(i),
				Resource: gputypes.BufferBinding{
					Buffer: b.Raw().NativeHandle(),
					Size:   0, // 0 = entire buffer
				},
			}
		}
		g, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "compute_" + pl.key.entry + "_bg",
			Layout:  pl.groupLayout,
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("nodes: create bind group: %w", err)
		}
		return g, nil
	})
}
