package backend

import (
	"sync"

	"github.com/gogpu/rendergraph/resource"
)

// HostBackend records frames in memory without a GPU. Resources carry no
// backend objects and frames are [resource.Log] recorders, which makes the
// backend suitable for dry runs and for inspecting the barrier stream.
type HostBackend struct {
	initialized bool
	device      *HostDevice
	submitted   int
}

// init registers the host backend on package import.
func init() {
	Register(BackendHost, func() Backend {
		return &HostBackend{}
	})
}

// NewHostBackend creates a new host backend.
func NewHostBackend() *HostBackend {
	return &HostBackend{}
}

// Name returns the backend identifier.
func (b *HostBackend) Name() string {
	return BackendHost
}

// Init initializes the backend.
func (b *HostBackend) Init() error {
	b.device = &HostDevice{}
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *HostBackend) Close() {
	b.device = nil
	b.initialized = false
}

// Device returns the host device, or nil before Init.
func (b *HostBackend) Device() resource.Device {
	if b.device == nil {
		return nil
	}
	return b.device
}

// HostDevice returns the concrete device for inspection in tests.
func (b *HostBackend) HostDevice() *HostDevice { return b.device }

// Submitted returns the number of frames submitted.
func (b *HostBackend) Submitted() int { return b.submitted }

// BeginFrame returns a frame that records into a resource.Log.
func (b *HostBackend) BeginFrame(_ string) (Frame, error) {
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return &hostFrame{Log: resource.NewLog(nil), backend: b}, nil
}

type hostFrame struct {
	*resource.Log
	backend *HostBackend
}

func (f *hostFrame) Submit() error {
	f.backend.submitted++
	return nil
}

func (f *hostFrame) Discard() { f.Reset() }

// hostHeap is the bookkeeping-only heap of a HostDevice.
type hostHeap struct {
	label string
	size  uint64
}

func (h *hostHeap) Label() string { return h.label }
func (h *hostHeap) Size() uint64  { return h.size }

// HostDevice creates resources that exist only as bookkeeping.
type HostDevice struct {
	mu        sync.Mutex
	live      int
	destroyed int
}

// CreateHeap implements resource.Device.
func (d *HostDevice) CreateHeap(label string, size uint64) (resource.Heap, error) {
	return &hostHeap{label: label, size: size}, nil
}

// DestroyHeap implements resource.Device.
func (d *HostDevice) DestroyHeap(resource.Heap) {}

// CreatePlacedBuffer implements resource.Device.
func (d *HostDevice) CreatePlacedBuffer(h resource.Heap, offset uint64, desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	d.created()
	return resource.NewBuffer(nil, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

// CreatePlacedTexture implements resource.Device.
func (d *HostDevice) CreatePlacedTexture(h resource.Heap, offset uint64, desc *resource.TextureDescriptor) (*resource.Texture, error) {
	d.created()
	return resource.NewTexture(nil, nil, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

// CreateBuffer implements resource.Device.
func (d *HostDevice) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	d.created()
	return resource.NewBuffer(nil, *desc, nil), nil
}

// CreateTexture implements resource.Device.
func (d *HostDevice) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	d.created()
	return resource.NewTexture(nil, nil, *desc, nil), nil
}

// DestroyBuffer implements resource.Device.
func (d *HostDevice) DestroyBuffer(*resource.Buffer) { d.released() }

// DestroyTexture implements resource.Device.
func (d *HostDevice) DestroyTexture(*resource.Texture) { d.released() }

// Live returns the number of resources created and not yet destroyed.
func (d *HostDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Destroyed returns the number of resources destroyed so far.
func (d *HostDevice) Destroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *HostDevice) created() {
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
}

func (d *HostDevice) released() {
	d.mu.Lock()
	d.live--
	d.destroyed++
	d.mu.Unlock()
}
