package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/resource"
)

// fullRange covers the single mip and layer of a graph texture.
var fullRange = hal.TextureRange{
	Aspect:          gputypes.TextureAspectAll,
	MipLevelCount:   1,
	ArrayLayerCount: 1,
}

// RecorderStats counts the commands a Recorder translated.
type RecorderStats struct {
	Transitions int
	UAV         int
	Aliasing    int
	Clears      int
	// Skipped counts barriers on resources without a HAL object.
	Skipped int
}

// Recorder implements resource.Recorder over a HAL command encoder.
type Recorder struct {
	mu      sync.Mutex
	device  *Device
	encoder hal.CommandEncoder
	label   string
	done    bool
	stats   RecorderStats
}

// NewRecorder creates a command encoder and begins encoding.
func (d *Device) NewRecorder(label string) (*Recorder, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return &Recorder{device: d, encoder: enc, label: label}, nil
}

// Encoder implements resource.Recorder.
func (r *Recorder) Encoder() hal.CommandEncoder { return r.encoder }

// Stats returns the counters for this recorder.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Barriers implements resource.Recorder. Buffer and texture transitions are
// batched into one HAL call each, preserving order within each kind.
//
// Aliasing barriers need no HAL command: a placed resource starts in the
// undefined state and the executor's first transition out of it discards
// the previous contents. UAV barriers become a storage-to-storage
// transition, which the HAL lowers to an execution and memory dependency.
func (r *Recorder) Barriers(barriers []resource.Barrier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bufs []hal.BufferBarrier
	var texs []hal.TextureBarrier

	for _, b := range barriers {
		switch b.Kind {
		case resource.BarrierAliasing:
			r.stats.Aliasing++
			continue
		case resource.BarrierUAV:
			r.stats.UAV++
		default:
			r.stats.Transitions++
		}

		switch res := b.Resource.(type) {
		case *resource.Buffer:
			if res.Raw() == nil {
				r.stats.Skipped++
				continue
			}
			usage := hal.BufferUsageTransition{OldUsage: b.OldBufferUsage, NewUsage: b.NewBufferUsage}
			if b.Kind == resource.BarrierUAV {
				usage = hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageStorage, NewUsage: gputypes.BufferUsageStorage}
			}
			bufs = append(bufs, hal.BufferBarrier{Buffer: res.Raw(), Usage: usage})
		case *resource.Texture:
			if res.Raw() == nil {
				r.stats.Skipped++
				continue
			}
			usage := hal.TextureUsageTransition{OldUsage: b.OldTextureUsage, NewUsage: b.NewTextureUsage}
			if b.Kind == resource.BarrierUAV {
				usage = hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageStorageBinding, NewUsage: gputypes.TextureUsageStorageBinding}
			}
			texs = append(texs, hal.TextureBarrier{Texture: res.Raw(), Range: fullRange, Usage: usage})
		}
	}

	if len(bufs) > 0 {
		r.encoder.TransitionBuffers(bufs)
	}
	if len(texs) > 0 {
		r.encoder.TransitionTextures(texs)
	}
}

// ClearTexture implements resource.Recorder with an empty render pass
// whose load op clears the target.
func (r *Recorder) ClearTexture(t *resource.Texture) {
	if t == nil || t.View() == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := t.Descriptor()
	pass := &hal.RenderPassDescriptor{Label: desc.Label + "_clear"}
	if t.IsDepth() {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            t.View(),
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: desc.ClearDepth,
		}
		if desc.Format.HasStencil() {
			ds.StencilLoadOp = gputypes.LoadOpClear
			ds.StencilStoreOp = gputypes.StoreOpStore
		}
		pass.DepthStencilAttachment = ds
	} else {
		pass.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:       t.View(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: desc.ClearColor,
		}}
	}
	r.encoder.BeginRenderPass(pass).End()
	r.stats.Clears++
}

// Submit ends encoding and submits the commands to the device queue.
func (r *Recorder) Submit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return fmt.Errorf("wgpu: recorder %q already finished", r.label)
	}
	r.done = true

	cmd, err := r.encoder.EndEncoding()
	if err != nil {
		r.encoder.Destroy()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	r.encoder.Destroy()
	return r.device.submit(cmd)
}

// Discard drops the recorded commands.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.encoder.DiscardEncoding()
	r.encoder.Destroy()
}
