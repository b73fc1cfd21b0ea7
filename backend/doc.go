// Package backend provides a pluggable GPU backend abstraction for the
// render graph.
//
// A [Backend] supplies the two collaborators the graph executor needs: a
// [resource.Device] that creates placed and standalone resources, and a
// per-frame [Frame] recorder that receives barriers and clears and hands
// nodes a command encoder.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The host backend is automatically registered on import:
//
//	import _ "github.com/gogpu/rendergraph/backend"
//
// GPU backends live in sub-packages and register on import:
//
//	import _ "github.com/gogpu/rendergraph/backend/wgpu"
//
// # Backend Selection
//
// Use Open("") to get the best available backend, or Open with a name to
// request a specific one:
//
//	b, err := backend.Open("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// # Available Backends
//
//   - "host": in-memory recording, no GPU (always available)
//   - "noop": gogpu/wgpu HAL no-op device (backend/wgpu)
//   - "vulkan": gogpu/wgpu HAL Vulkan device (backend/wgpu)
package backend
