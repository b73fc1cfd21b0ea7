package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/resource"

	_ "github.com/gogpu/wgpu/hal/noop"   // register noop HAL backend
	_ "github.com/gogpu/wgpu/hal/vulkan" // register Vulkan HAL backend
)

// Backend is a backend.Backend over a HAL device.
type Backend struct {
	name    string
	variant gputypes.Backend
	device  *Device
}

// init registers the HAL backends on package import.
func init() {
	backend.Register(backend.BackendNoop, func() backend.Backend {
		return NewBackend(backend.BackendNoop, gputypes.BackendEmpty)
	})
	backend.Register(backend.BackendVulkan, func() backend.Backend {
		return NewBackend(backend.BackendVulkan, gputypes.BackendVulkan)
	})
}

// NewBackend returns an uninitialized backend for the given HAL variant.
func NewBackend(name string, variant gputypes.Backend) *Backend {
	return &Backend{name: name, variant: variant}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return b.name }

// Init opens the HAL device.
func (b *Backend) Init() error {
	if b.device != nil {
		return nil
	}
	d, err := Open(b.variant)
	if err != nil {
		return err
	}
	b.device = d
	return nil
}

// Close releases the device.
func (b *Backend) Close() {
	if b.device != nil {
		b.device.Close()
		b.device = nil
	}
}

// Device returns the resource device, or nil before Init.
func (b *Backend) Device() resource.Device {
	if b.device == nil {
		return nil
	}
	return b.device
}

// HALDevice returns the concrete device, or nil before Init.
func (b *Backend) HALDevice() *Device { return b.device }

// BeginFrame starts a command recorder.
func (b *Backend) BeginFrame(label string) (backend.Frame, error) {
	if b.device == nil {
		return nil, backend.ErrNotInitialized
	}
	return b.device.NewRecorder(label)
}
