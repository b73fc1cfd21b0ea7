// Package transient implements the placement allocator behind the render
// graph's short-lived resources.
//
// All transient buffers and textures live in one fixed-size [resource.Heap].
// Byte ranges are handed out first-fit and returned to the free list as soon
// as a resource is released, so a later allocation in the same frame may
// land on memory a previous resource just used. Every release leaves a
// pending-free record behind; when a new placement overlaps such a record
// from the current frame, the allocator queues an aliasing barrier that the
// graph executor collects with [Allocator.Step].
//
// Pending-free records keep the released GPU object alive until the frame
// that allocated it has left the frames-in-flight window, at which point
// [Allocator.PreUpdate] destroys it.
//
// Lifecycle per frame:
//
//	clock.Advance()
//	if err := alloc.PreUpdate(); err != nil { ... } // leak check + purge
//	h, buf, err := alloc.AllocateBuffer(desc)
//	barriers := alloc.Step()
//	...
//	alloc.Free(h)
package transient
