package transient

import "errors"

var (
	// ErrOutOfMemory is returned when no free range of the heap can hold a
	// new resource.
	ErrOutOfMemory = errors.New("transient: heap exhausted")

	// ErrPoolExhausted is returned when MaxResources resources are live.
	ErrPoolExhausted = errors.New("transient: resource pool exhausted")

	// ErrCrossFrameRelease is returned when a resource is freed in a frame
	// other than the one it was allocated in.
	ErrCrossFrameRelease = errors.New("transient: resource released outside its frame")

	// ErrLeak is returned by PreUpdate when resources from the previous
	// frame were never released.
	ErrLeak = errors.New("transient: resources leaked across frames")

	// ErrInvalidHandle is returned for stale or zero handles.
	ErrInvalidHandle = errors.New("transient: invalid handle")

	// ErrInvalidDescriptor is returned for zero-sized resources and texture
	// formats without a known block size.
	ErrInvalidDescriptor = errors.New("transient: invalid resource descriptor")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transient: allocator closed")
)
