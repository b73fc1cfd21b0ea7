package wgpu

import "errors"

// Backend errors.
var (
	// ErrNoAdapter is returned when the HAL backend exposes no adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrBackendUnavailable is returned when the requested HAL backend is
	// not compiled in or not registered.
	ErrBackendUnavailable = errors.New("wgpu: HAL backend not available")

	// ErrNotHAL is returned when a device provider does not expose HAL types.
	ErrNotHAL = errors.New("wgpu: provider does not expose HAL types")

	// ErrDeviceClosed is returned after Close.
	ErrDeviceClosed = errors.New("wgpu: device closed")

	// ErrForeignResource is returned when a resource was created by a
	// different device implementation.
	ErrForeignResource = errors.New("wgpu: resource has no HAL object")
)
