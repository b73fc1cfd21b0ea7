package backend

import (
	"errors"

	"github.com/gogpu/rendergraph/resource"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend supplies the GPU collaborators a render graph needs: a device
// for placed and standalone resources, and one command recorder per frame.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "host", "vulkan").
	Name() string

	// Init opens the device. It must be called before any other method.
	Init() error

	// Close releases the device. The backend should not be used after
	// Close is called.
	Close()

	// Device returns the resource factory.
	Device() resource.Device

	// BeginFrame starts recording a frame's commands.
	BeginFrame(label string) (Frame, error)
}

// Frame records one frame and submits it.
type Frame interface {
	resource.Recorder

	// Submit finishes recording and hands the commands to the GPU.
	Submit() error

	// Discard drops everything recorded.
	Discard()
}
