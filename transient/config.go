package transient

import "github.com/gogpu/rendergraph/resource"

// Default configuration values.
const (
	// DefaultHeapSize is the size of the transient heap (256 MiB).
	DefaultHeapSize = 256 << 20

	// DefaultMaxResources is the number of transient resources that may be
	// live at once.
	DefaultMaxResources = 1024

	// DefaultAlignment is the placement alignment inside the heap.
	DefaultAlignment = resource.DefaultPlacementAlignment

	// DefaultFramesInFlight is the number of frames the GPU may still be
	// working on while the CPU records a new one.
	DefaultFramesInFlight = 2
)

// Config holds configuration for creating an Allocator.
type Config struct {
	// Label names the heap in debug output. Defaults to "transient".
	Label string

	// HeapSize is the heap size in bytes.
	// Defaults to DefaultHeapSize if zero.
	HeapSize uint64

	// MaxResources bounds the number of live resources.
	// Defaults to DefaultMaxResources if <= 0.
	MaxResources int

	// Alignment is the placement alignment in bytes. It must be a power of
	// two; other values fall back to DefaultAlignment.
	Alignment uint64
}

func (c Config) withDefaults() Config {
	if c.Label == "" {
		c.Label = "transient"
	}
	if c.HeapSize == 0 {
		c.HeapSize = DefaultHeapSize
	}
	if c.MaxResources <= 0 {
		c.MaxResources = DefaultMaxResources
	}
	if c.Alignment == 0 || c.Alignment&(c.Alignment-1) != 0 {
		c.Alignment = DefaultAlignment
	}
	return c
}
