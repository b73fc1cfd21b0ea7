package freelist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllocateFirstFit(t *testing.T) {
	a := New(0, 1024)

	r1, ok := a.Allocate(100, 1)
	if !ok || r1 != (Range{Start: 0, Size: 100}) {
		t.Fatalf("Allocate(100) = %+v, %v", r1, ok)
	}
	r2, ok := a.Allocate(200, 1)
	if !ok || r2 != (Range{Start: 100, Size: 200}) {
		t.Fatalf("Allocate(200) = %+v, %v", r2, ok)
	}

	a.Free(r1)
	// A request that fits the hole in front must land there.
	r3, ok := a.Allocate(50, 1)
	if !ok || r3.Start != 0 {
		t.Fatalf("Allocate(50) after free = %+v, %v; want start 0", r3, ok)
	}
	if got := a.Allocations(); got != 2 {
		t.Errorf("Allocations() = %d, want 2", got)
	}
}

func TestAllocateAlignment(t *testing.T) {
	tests := []struct {
		name      string
		first     uint64
		size      uint64
		alignment uint64
		wantStart uint64
	}{
		{"power of two", 10, 32, 64, 64},
		{"already aligned", 64, 16, 64, 64},
		{"non power of two", 10, 8, 48, 48},
		{"alignment zero treated as one", 3, 8, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(0, 4096)
			if _, ok := a.Allocate(tt.first, 1); !ok {
				t.Fatal("first allocation failed")
			}
			r, ok := a.Allocate(tt.size, tt.alignment)
			if !ok {
				t.Fatal("aligned allocation failed")
			}
			if r.Start != tt.wantStart {
				t.Errorf("Start = %d, want %d", r.Start, tt.wantStart)
			}
		})
	}
}

func TestAllocatePaddingStaysFree(t *testing.T) {
	a := New(0, 256)
	a.Allocate(10, 1)
	r, _ := a.Allocate(16, 64)
	if r.Start != 64 {
		t.Fatalf("Start = %d, want 64", r.Start)
	}
	// The 54 bytes of padding between 10 and 64 must still be usable.
	pad, ok := a.Allocate(54, 1)
	if !ok || pad.Start != 10 {
		t.Fatalf("padding allocation = %+v, %v; want start 10", pad, ok)
	}
}

func TestAllocateExhausted(t *testing.T) {
	a := New(0, 128)
	if _, ok := a.Allocate(129, 1); ok {
		t.Fatal("Allocate larger than capacity succeeded")
	}
	if _, ok := a.Allocate(0, 1); ok {
		t.Fatal("zero-size Allocate succeeded")
	}
	if _, ok := a.Allocate(128, 1); !ok {
		t.Fatal("Allocate of exact capacity failed")
	}
	if _, ok := a.Allocate(1, 1); ok {
		t.Fatal("Allocate on full arena succeeded")
	}
}

func TestFreeCoalesces(t *testing.T) {
	a := New(0, 300)
	r1, _ := a.Allocate(100, 1)
	r2, _ := a.Allocate(100, 1)
	r3, _ := a.Allocate(100, 1)

	a.Free(r1)
	a.Free(r3)
	if got := a.Fragments(); got != 2 {
		t.Fatalf("Fragments() = %d, want 2", got)
	}
	a.Free(r2)

	if !a.Drained() {
		t.Fatalf("allocator not drained, free list = %+v", a.free)
	}
	if diff := cmp.Diff([]Range{{Start: 0, Size: 300}}, a.free); diff != "" {
		t.Errorf("free list mismatch (-want +got):\n%s", diff)
	}
	if a.UsedBytes() != 0 {
		t.Errorf("UsedBytes() = %d, want 0", a.UsedBytes())
	}
}

func TestRangeOverlaps(t *testing.T) {
	tests := []struct {
		a, b Range
		want bool
	}{
		{Range{0, 10}, Range{5, 10}, true},
		{Range{0, 10}, Range{10, 10}, false},
		{Range{10, 10}, Range{0, 10}, false},
		{Range{0, 100}, Range{20, 5}, true},
		{Range{20, 5}, Range{0, 100}, true},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%+v.Overlaps(%+v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestReset(t *testing.T) {
	a := New(64, 192)
	a.Allocate(32, 1)
	a.Reset()
	if !a.Drained() {
		t.Error("Reset did not drain the allocator")
	}
	if got := a.LargestFree(); got != 128 {
		t.Errorf("LargestFree() = %d, want 128", got)
	}
}
