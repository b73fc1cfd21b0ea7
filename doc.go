// Package rendergraph schedules the GPU work of one frame as a graph of
// nodes.
//
// # Overview
//
// Each node declares, in a setup pass, which resources it reads, which it
// writes, which it wants freshly allocated, and which it renames (consumes
// under one ID and hands on under another). From these declarations the
// graph derives:
//
//   - an order: nodes are grouped into depth levels; a level only runs
//     after the previous one finished, and nodes within a level are
//     independent
//   - lifetimes: every resource is reference counted over the schedule so
//     transient memory is released the moment its last user has run
//   - synchronization: usage transitions, aliasing barriers for memory
//     reused within a frame, and UAV barriers between storage writes
//
// # Quick Start
//
//	g := rendergraph.NewGraph()
//	g.AddExternalTexture("backbuffer", backbuffer)
//	g.AddNode("simulate", simulate, false)
//	g.AddNode("draw", draw, true)
//	if err := g.Setup(); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    clock.Advance()
//	    if err := alloc.PreUpdate(); err != nil {
//	        log.Fatal(err)
//	    }
//	    frame, _ := be.BeginFrame("frame")
//	    if err := g.Execute(alloc, &rendergraph.FrameContext{Recorder: frame}); err != nil {
//	        frame.Discard()
//	        log.Fatal(err)
//	    }
//	    frame.Submit()
//	}
//
// # Architecture
//
// The module is organized into:
//   - rendergraph: node contract, graph builder, lifetime pass, executor
//   - resource: buffers, textures, barriers, device and recorder contracts
//   - transient: placement allocator over one heap with aliasing detection
//   - backend, backend/wgpu: devices and recorders (host-only and HAL)
//   - nodes: reusable clear, copy and WGSL compute nodes
//   - graphfile: YAML graph descriptions
//
// # Errors
//
// Malformed graphs are programmer errors. Setup and Execute report them as
// errors wrapping the sentinels in this package, so callers can test with
// errors.Is and decide to abort.
//
// # Logging
//
// The package is silent by default. See SetLogger.
package rendergraph
