package transient

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/resource"
)

type fakeHeap struct {
	label string
	size  uint64
}

func (h *fakeHeap) Label() string { return h.label }
func (h *fakeHeap) Size() uint64  { return h.size }

// fakeDevice creates backend-less resources and counts destructions.
type fakeDevice struct {
	destroyed     []string
	heapDestroyed bool
	// createErr fails every placed creation when set.
	createErr error
}

func (d *fakeDevice) CreateHeap(label string, size uint64) (resource.Heap, error) {
	return &fakeHeap{label: label, size: size}, nil
}

func (d *fakeDevice) DestroyHeap(resource.Heap) { d.heapDestroyed = true }

func (d *fakeDevice) CreatePlacedBuffer(h resource.Heap, offset uint64, desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	return resource.NewBuffer(nil, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

func (d *fakeDevice) CreatePlacedTexture(h resource.Heap, offset uint64, desc *resource.TextureDescriptor) (*resource.Texture, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	return resource.NewTexture(nil, nil, *desc, &resource.Placement{Heap: h, Offset: offset, Size: desc.Size()}), nil
}

func (d *fakeDevice) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	return resource.NewBuffer(nil, *desc, nil), nil
}

func (d *fakeDevice) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	return resource.NewTexture(nil, nil, *desc, nil), nil
}

func (d *fakeDevice) DestroyBuffer(b *resource.Buffer)   { d.destroyed = append(d.destroyed, b.Label()) }
func (d *fakeDevice) DestroyTexture(t *resource.Texture) { d.destroyed = append(d.destroyed, t.Label()) }

const mib = 1 << 20

func newTestAllocator(t *testing.T, cfg Config) (*Allocator, *FrameClock, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	clock := NewFrameClock(2)
	a, err := New(dev, clock, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a, clock, dev
}

func bufferDesc(label string, size uint32) resource.BufferDescriptor {
	return resource.BufferDescriptor{
		Label:       label,
		ElementSize: 4,
		Count:       size / 4,
		Usage:       gputypes.BufferUsageStorage,
	}
}

func overlaps(a, b resource.Resource) bool {
	ao, as, _ := a.Placement()
	bo, bs, _ := b.Placement()
	return ao < bo+bs && bo < ao+as
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Alignment: 3}.withDefaults()
	if cfg.HeapSize != DefaultHeapSize {
		t.Errorf("HeapSize = %d, want %d", cfg.HeapSize, DefaultHeapSize)
	}
	if cfg.MaxResources != DefaultMaxResources {
		t.Errorf("MaxResources = %d, want %d", cfg.MaxResources, DefaultMaxResources)
	}
	if cfg.Alignment != DefaultAlignment {
		t.Errorf("Alignment = %d, want %d", cfg.Alignment, DefaultAlignment)
	}
	if cfg.Label != "transient" {
		t.Errorf("Label = %q", cfg.Label)
	}
}

func TestAllocateSameFrameAliases(t *testing.T) {
	a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance()

	h1, first, err := a.AllocateBuffer(bufferDesc("first", mib))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Step(); len(got) != 0 {
		t.Fatalf("fresh heap emitted barriers: %v", got)
	}
	if err := a.Free(h1); err != nil {
		t.Fatal(err)
	}

	h2, second, err := a.AllocateBuffer(bufferDesc("second", mib))
	if err != nil {
		t.Fatal(err)
	}
	if !overlaps(first, second) {
		t.Fatal("same-size allocation after free should reuse the range")
	}
	barriers := a.Step()
	if len(barriers) != 1 {
		t.Fatalf("got %d barriers, want 1: %v", len(barriers), barriers)
	}
	b := barriers[0]
	if b.Kind != resource.BarrierAliasing || b.Before != first || b.Resource != second {
		t.Errorf("barrier = %v", b)
	}
	if got := a.Step(); len(got) != 0 {
		t.Errorf("Step should drain barriers, got %v", got)
	}
	if err := a.Free(h2); err != nil {
		t.Fatal(err)
	}
}

func TestAliasingRecordMatchedOnce(t *testing.T) {
	a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance()

	h, _, _ := a.AllocateBuffer(bufferDesc("old", mib))
	if err := a.Free(h); err != nil {
		t.Fatal(err)
	}

	h1, _, _ := a.AllocateBuffer(bufferDesc("a", mib))
	if n := len(a.Step()); n != 1 {
		t.Fatalf("first reuse: %d barriers, want 1", n)
	}
	if err := a.Free(h1); err != nil {
		t.Fatal(err)
	}

	// The next placement overlaps both records; only the newest, unaliased
	// one is reported.
	_, third, _ := a.AllocateBuffer(bufferDesc("b", mib))
	got := a.Step()
	if len(got) != 1 {
		t.Fatalf("second reuse: %d barriers, want 1", len(got))
	}
	if got[0].Before.Label() != "a" || got[0].Resource != third {
		t.Errorf("barrier = %v, want Aliasing(a -> b)", got[0])
	}
	if s := a.Stats(); s.AliasingBarriers != 2 {
		t.Errorf("AliasingBarriers = %d, want 2", s.AliasingBarriers)
	}
	a.ReleaseAll()
}

func TestNoAliasingAcrossFrames(t *testing.T) {
	a, clock, dev := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance() // frame 1

	h, first, _ := a.AllocateBuffer(bufferDesc("first", mib))
	if err := a.Free(h); err != nil {
		t.Fatal(err)
	}

	clock.Advance() // frame 2, record still in flight
	if err := a.PreUpdate(); err != nil {
		t.Fatal(err)
	}
	if s := a.Stats(); s.PendingFrees != 1 {
		t.Fatalf("PendingFrees = %d, want 1", s.PendingFrees)
	}
	h, second, _ := a.AllocateBuffer(bufferDesc("second", mib))
	if !overlaps(first, second) {
		t.Fatal("range should be reused")
	}
	if got := a.Step(); len(got) != 0 {
		t.Errorf("cross-frame reuse emitted %v", got)
	}
	if err := a.Free(h); err != nil {
		t.Fatal(err)
	}

	clock.Advance() // frame 3: 1+2 <= 3 purges "first"
	if err := a.PreUpdate(); err != nil {
		t.Fatal(err)
	}
	if len(dev.destroyed) != 1 || dev.destroyed[0] != "first" {
		t.Errorf("destroyed = %v, want [first]", dev.destroyed)
	}
	if s := a.Stats(); s.PendingFrees != 1 {
		t.Errorf("PendingFrees = %d, want 1", s.PendingFrees)
	}
}

func TestAllocateErrors(t *testing.T) {
	t.Run("out of memory", func(t *testing.T) {
		a, clock, _ := newTestAllocator(t, Config{HeapSize: mib})
		clock.Advance()
		_, _, err := a.AllocateBuffer(bufferDesc("big", 2*mib))
		if !errors.Is(err, ErrOutOfMemory) {
			t.Errorf("err = %v, want ErrOutOfMemory", err)
		}
		if s := a.Stats(); s.LiveResources != 0 {
			t.Errorf("failed allocation left %d live resources", s.LiveResources)
		}
	})

	t.Run("pool exhausted", func(t *testing.T) {
		a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib, MaxResources: 1})
		clock.Advance()
		if _, _, err := a.AllocateBuffer(bufferDesc("a", 16)); err != nil {
			t.Fatal(err)
		}
		_, _, err := a.AllocateBuffer(bufferDesc("b", 16))
		if !errors.Is(err, ErrPoolExhausted) {
			t.Errorf("err = %v, want ErrPoolExhausted", err)
		}
		a.ReleaseAll()
	})

	t.Run("zero size", func(t *testing.T) {
		a, _, _ := newTestAllocator(t, Config{})
		_, _, err := a.AllocateBuffer(resource.BufferDescriptor{Label: "empty"})
		if !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("err = %v, want ErrInvalidDescriptor", err)
		}
	})

	t.Run("compressed format", func(t *testing.T) {
		a, _, _ := newTestAllocator(t, Config{})
		_, _, err := a.AllocateTexture(resource.TextureDescriptor{
			Label: "bc1", Width: 4, Height: 4,
			Format: gputypes.TextureFormatBC1RGBAUnorm,
			Usage:  gputypes.TextureUsageTextureBinding,
		})
		if !errors.Is(err, resource.ErrUnsupportedFormat) {
			t.Errorf("err = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("device failure", func(t *testing.T) {
		a, clock, dev := newTestAllocator(t, Config{HeapSize: mib})
		clock.Advance()
		boom := errors.New("device lost")
		dev.createErr = boom
		if _, _, err := a.AllocateBuffer(bufferDesc("lost", 1024)); !errors.Is(err, boom) {
			t.Errorf("err = %v, want device error", err)
		}
		s := a.Stats()
		if s.Allocations != 0 || s.LiveResources != 0 || s.UsedBytes != 0 || s.PeakBytes != 0 {
			t.Errorf("Stats after failed create = %+v", s)
		}
		dev.createErr = nil
		if _, _, err := a.AllocateBuffer(bufferDesc("ok", 1024)); err != nil {
			t.Fatal(err)
		}
		if got := a.Stats().Allocations; got != 1 {
			t.Errorf("Allocations = %d, want 1", got)
		}
		a.ReleaseAll()
	})

	t.Run("closed", func(t *testing.T) {
		a, _, _ := newTestAllocator(t, Config{})
		a.Close()
		_, _, err := a.AllocateBuffer(bufferDesc("late", 16))
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	})
}

func TestFreeErrors(t *testing.T) {
	a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance()

	h, _, _ := a.AllocateBuffer(bufferDesc("b", 64))
	clock.Advance()
	if err := a.Free(h); !errors.Is(err, ErrCrossFrameRelease) {
		t.Errorf("Free in later frame = %v, want ErrCrossFrameRelease", err)
	}
	if err := a.PreUpdate(); !errors.Is(err, ErrLeak) {
		t.Errorf("PreUpdate with live resource = %v, want ErrLeak", err)
	}

	if n := a.ReleaseAll(); n != 1 {
		t.Errorf("ReleaseAll = %d, want 1", n)
	}
	if err := a.Free(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("double Free = %v, want ErrInvalidHandle", err)
	}
	if err := a.Free(Handle{}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Free(zero) = %v, want ErrInvalidHandle", err)
	}
	if err := a.PreUpdate(); err != nil {
		t.Errorf("PreUpdate after ReleaseAll = %v", err)
	}
}

func TestLookupByKind(t *testing.T) {
	a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance()

	hb, buf, _ := a.AllocateBuffer(bufferDesc("b", 64))
	ht, tex, err := a.AllocateTexture(resource.TextureDescriptor{
		Label: "t", Width: 8, Height: 8,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	if overlaps(buf, tex) {
		t.Error("live resources must not overlap")
	}
	if got, ok := a.Buffer(hb); !ok || got != buf {
		t.Error("Buffer lookup failed")
	}
	if _, ok := a.Texture(hb); ok {
		t.Error("Texture lookup of a buffer handle should fail")
	}
	if got, ok := a.Texture(ht); !ok || got != tex {
		t.Error("Texture lookup failed")
	}
	if off, _, _ := tex.Placement(); off%DefaultAlignment != 0 {
		t.Errorf("texture offset %d not aligned", off)
	}
	if ht.Kind() != resource.KindTexture || hb.Kind() != resource.KindBuffer {
		t.Error("handle kinds wrong")
	}
	a.ReleaseAll()
}

func TestCloseDestroysEverything(t *testing.T) {
	dev := &fakeDevice{}
	clock := NewFrameClock(2)
	a, err := New(dev, clock, Config{HeapSize: 4 * mib})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance()
	h, _, _ := a.AllocateBuffer(bufferDesc("pending", 64))
	_ = a.Free(h)
	_, _, _ = a.AllocateBuffer(bufferDesc("live", 64))

	a.Close()
	a.Close()

	if len(dev.destroyed) != 2 {
		t.Errorf("destroyed = %v, want 2 resources", dev.destroyed)
	}
	if !dev.heapDestroyed {
		t.Error("heap not destroyed")
	}
}

func TestStatsPeak(t *testing.T) {
	a, clock, _ := newTestAllocator(t, Config{HeapSize: 4 * mib})
	clock.Advance()

	h1, _, _ := a.AllocateBuffer(bufferDesc("a", mib))
	h2, _, _ := a.AllocateBuffer(bufferDesc("b", mib))
	_ = a.Free(h1)
	_ = a.Free(h2)

	s := a.Stats()
	if s.PeakBytes != 2*mib || s.UsedBytes != 0 || s.Allocations != 2 {
		t.Errorf("Stats = %+v", s)
	}
	if s.Fragments != 1 {
		t.Errorf("Fragments = %d, want 1 after draining", s.Fragments)
	}
}
