// Package cache provides a generic LRU cache for GPU objects.
//
// Entries are created on first use and handed to an eviction callback
// when they fall out of the cache or the cache is purged, so objects such
// as shader modules and pipelines can be destroyed deterministically.
//
//	c := cache.New[string, hal.ShaderModule](32, func(_ string, m hal.ShaderModule) {
//	    device.DestroyShaderModule(m)
//	})
//	mod, err := c.GetOrCreate(source, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
