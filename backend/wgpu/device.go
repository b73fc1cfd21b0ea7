package wgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/resource"
)

// GPUInfo contains information about the selected GPU.
type GPUInfo struct {
	// Name is the GPU name (e.g., "NVIDIA GeForce RTX 3080").
	Name string
	// Vendor is the GPU vendor.
	Vendor string
	// DeviceType is the type of GPU (discrete, integrated, etc.).
	DeviceType gputypes.DeviceType
	// Backend is the graphics API in use (Vulkan, Metal, DX12).
	Backend gputypes.Backend
	// Driver is the driver version string.
	Driver string
}

// String returns a human-readable description of the GPU.
func (g *GPUInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", g.Name, g.DeviceType, g.Backend)
}

// heap is the bookkeeping heap handed to the transient allocator.
type heap struct {
	label string
	size  uint64
}

func (h *heap) Label() string { return h.label }
func (h *heap) Size() uint64  { return h.size }

// Device implements resource.Device over a HAL device.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	info     GPUInfo

	// external is true when the device belongs to someone else and must
	// not be destroyed by Close.
	external bool
	closed   bool

	// in-flight command buffers by submission index
	inflight []submission

	buffers, textures int
}

type submission struct {
	index uint64
	cmd   hal.CommandBuffer
}

// Open creates an instance of the given HAL backend, selects an adapter
// (discrete or integrated GPUs first) and opens a device on it.
func Open(variant gputypes.Backend) (*Device, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := &Device{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
		info: GPUInfo{
			Name:       selected.Info.Name,
			Vendor:     selected.Info.Vendor,
			DeviceType: selected.Info.DeviceType,
			Backend:    selected.Info.Backend,
			Driver:     selected.Info.Driver,
		},
	}
	slogger().Info("wgpu: device opened", slog.String("gpu", d.info.String()))
	if d.info.Driver != "" {
		slogger().Debug("wgpu: driver", slog.String("driver", d.info.Driver))
	}
	return d, nil
}

// NewDevice wraps an existing HAL device and queue. The caller keeps
// ownership; Close does not destroy them. queue may be nil if the device
// is only used to create resources.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{device: device, queue: queue, external: true}
}

// NewDeviceFromProvider adopts the shared device of a provider such as a
// gogpu application. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHAL)
	}

	d := NewDevice(device, queue)
	adapter := provider.AdapterInfo()
	d.info.Name = adapter.Name
	slogger().Info("wgpu: switched to shared GPU device",
		slog.String("adapter", adapter.Name),
		slog.String("type", adapter.Type.String()),
		slog.String("surface_format", provider.SurfaceFormat().String()))
	return d, nil
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the HAL queue, or nil for resource-only devices.
func (d *Device) Queue() hal.Queue { return d.queue }

// Info returns information about the GPU, if the device was opened by Open.
func (d *Device) Info() GPUInfo { return d.info }

// CreateHeap implements resource.Device.
func (d *Device) CreateHeap(label string, size uint64) (resource.Heap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return &heap{label: label, size: size}, nil
}

// DestroyHeap implements resource.Device.
func (d *Device) DestroyHeap(resource.Heap) {}

// CreatePlacedBuffer implements resource.Device.
func (d *Device) CreatePlacedBuffer(h resource.Heap, offset uint64, desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	raw, err := d.createBuffer(desc)
	if err != nil {
		return nil, err
	}
	return resource.NewBuffer(raw, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

// CreateBuffer implements resource.Device.
func (d *Device) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	raw, err := d.createBuffer(desc)
	if err != nil {
		return nil, err
	}
	return resource.NewBuffer(raw, *desc, nil), nil
}

func (d *Device) createBuffer(desc *resource.BufferDescriptor) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignUp4(desc.Size()),
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	d.buffers++
	return raw, nil
}

// CreatePlacedTexture implements resource.Device.
func (d *Device) CreatePlacedTexture(h resource.Heap, offset uint64, desc *resource.TextureDescriptor) (*resource.Texture, error) {
	raw, view, err := d.createTexture(desc)
	if err != nil {
		return nil, err
	}
	return resource.NewTexture(raw, view, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

// CreateTexture implements resource.Device.
func (d *Device) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	raw, view, err := d.createTexture(desc)
	if err != nil {
		return nil, err
	}
	return resource.NewTexture(raw, view, *desc, nil), nil
}

func (d *Device) createTexture(desc *resource.TextureDescriptor) (hal.Texture, hal.TextureView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, ErrDeviceClosed
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           desc.Label + "_view",
		Format:          desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, nil, fmt.Errorf("wgpu: create view %q: %w", desc.Label, err)
	}
	d.textures++
	return raw, view, nil
}

// DestroyBuffer implements resource.Device.
func (d *Device) DestroyBuffer(b *resource.Buffer) {
	if b == nil || b.Raw() == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.device.DestroyBuffer(b.Raw())
	d.buffers--
}

// DestroyTexture implements resource.Device.
func (d *Device) DestroyTexture(t *resource.Texture) {
	if t == nil || t.Raw() == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.View() != nil {
		d.device.DestroyTextureView(t.View())
	}
	d.device.DestroyTexture(t.Raw())
	d.textures--
}

// Live returns the number of buffers and textures created and not yet
// destroyed.
func (d *Device) Live() (buffers, textures int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers, d.textures
}

// submit hands a finished command buffer to the queue and frees buffers of
// earlier submissions the GPU has completed.
func (d *Device) submit(cmd hal.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.device.FreeCommandBuffer(cmd)
		return ErrDeviceClosed
	}
	if d.queue == nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: submit: device has no queue")
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.inflight = append(d.inflight, submission{index: idx, cmd: cmd})
	d.reclaimLocked(d.queue.PollCompleted())
	return nil
}

func (d *Device) reclaimLocked(completed uint64) {
	kept := d.inflight[:0]
	for _, s := range d.inflight {
		if s.index <= completed {
			d.device.FreeCommandBuffer(s.cmd)
			continue
		}
		kept = append(kept, s)
	}
	d.inflight = kept
}

// Close waits for the GPU, frees in-flight command buffers and, for
// devices opened by Open, destroys the device and instance.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("wgpu: wait idle failed", slog.String("err", err.Error()))
	}
	for _, s := range d.inflight {
		d.device.FreeCommandBuffer(s.cmd)
	}
	d.inflight = nil

	if d.buffers != 0 || d.textures != 0 {
		slogger().Warn("wgpu: closing device with live resources",
			slog.Int("buffers", d.buffers), slog.Int("textures", d.textures))
	}
	if d.external {
		return
	}
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

func alignUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}
