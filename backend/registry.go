package backend

import (
	"sort"
	"sync"
)

// Backend name constants.
const (
	// BackendHost is the in-memory backend that records without a GPU.
	BackendHost = "host"
	// BackendNoop is the gogpu/wgpu HAL no-op backend.
	BackendNoop = "noop"
	// BackendVulkan is the gogpu/wgpu HAL Vulkan backend.
	BackendVulkan = "vulkan"
)

// Factory creates a new, uninitialized backend instance.
type Factory func() Backend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendVulkan, BackendNoop, BackendHost}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Open returns the named backend, initialized. An empty name selects the
// first backend in priority order that initializes successfully.
func Open(name string) (Backend, error) {
	if name != "" {
		b := Get(name)
		if b == nil {
			return nil, ErrBackendNotAvailable
		}
		if err := b.Init(); err != nil {
			return nil, err
		}
		return b, nil
	}

	registryMu.RLock()
	var candidates []Factory
	for _, n := range backendPriority {
		if f, ok := backends[n]; ok {
			candidates = append(candidates, f)
		}
	}
	registryMu.RUnlock()

	for _, f := range candidates {
		b := f()
		if b == nil {
			continue
		}
		if err := b.Init(); err == nil {
			return b, nil
		}
	}
	return nil, ErrBackendNotAvailable
}
