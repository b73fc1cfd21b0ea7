// Package wgpu provides the render graph's GPU backend on top of the
// gogpu/wgpu hardware abstraction layer.
//
// It implements [resource.Device] over a [hal.Device] and
// [resource.Recorder] over a [hal.CommandEncoder], and registers the
// "noop" and "vulkan" backends with package backend on import:
//
//	import _ "github.com/gogpu/rendergraph/backend/wgpu"
//
//	b, err := backend.Open("vulkan")
//
// # Architecture Overview
//
//	Graph executor -> Recorder (barriers, clears) -> hal.CommandEncoder -> Queue
//	Transient allocator -> Device (placed resources) -> hal.Device
//
// Key components:
//
//   - Device: creates buffers, textures and default views; opens a HAL
//     adapter itself or adopts one from a gpucontext.DeviceProvider
//   - Recorder: translates resource barriers to HAL transitions and clears
//     render targets with an empty render pass
//   - Backend: the backend.Backend registered under "noop" and "vulkan"
//
// # Memory Placement
//
// The HAL has no placed resources, so a heap is bookkeeping only: every
// transient gets its own allocation while its heap offset is still used
// for aliasing analysis. Aliasing barriers become a transition from the
// undefined state, which discards the previous contents the same way.
//
// # Shared Devices
//
// To render into an application's device (e.g., a gogpu window), adopt it:
//
//	dev, err := wgpu.NewDeviceFromProvider(app)
//
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
package wgpu
