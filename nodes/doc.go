// Package nodes provides reusable render graph nodes for common GPU work.
//
// ClearBuffer zero-fills a buffer, CopyBuffer copies one buffer into
// another and Compute dispatches a WGSL compute shader over storage
// buffers. All of them record through ExecuteContext.Encode, so they are
// safe in graphs with workers, and do nothing when the frame's recorder
// has no command encoder or a buffer has no backend object (host dry
// runs).
//
// Compute nodes share a [Pipelines] cache that compiles each shader once
// with naga and keeps the resulting pipelines and bind groups:
//
//	pipes := nodes.NewPipelines(device.HAL(), nodes.PipelinesConfig{})
//	defer pipes.Close()
//
//	g.AddNode("double", &nodes.Compute{
//	    Source:    doubleWGSL,
//	    Inputs:    []rendergraph.ResourceID{"src"},
//	    Outputs:   []nodes.BufferOutput{{ID: "dst", Spec: spec}},
//	    Pipelines: pipes,
//	}, true)
package nodes
