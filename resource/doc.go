// Package resource is the GPU resource layer used by the render graph.
//
// It wraps backend buffers and textures ([hal.Buffer], [hal.Texture]) with the
// bookkeeping the scheduler needs:
//
//   - the set of usages a resource was created with,
//   - the usage state it is currently in, so transitions can be computed,
//   - its placement inside a shared [Heap], so the transient allocator can
//     detect memory aliasing.
//
// # Collaborators
//
// A [Device] creates placed resources at a given heap offset, and a
// [Recorder] receives the barriers and clears the graph executor emits.
// Package backend/wgpu provides both on top of gogpu/wgpu HAL; tests may
// supply their own recorder to observe the exact barrier stream.
//
// # Barriers
//
// Three kinds of [Barrier] exist:
//
//   - [BarrierTransition]: a resource moves from one usage to another.
//   - [BarrierAliasing]: a resource takes over heap memory last used by a
//     different resource in the same frame.
//   - [BarrierUAV]: two consecutive read/write storage accesses to the same
//     resource must be ordered.
package resource
