// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flare

import (
	"errors"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Device errors.
var (
	// ErrNilGpu is returned when a device is created without a backend.
	ErrNilGpu = errors.New("flare: gpu backend is nil")
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu.App) implements DeviceProvider and passes it in,
// allowing flare and the host to share one GPU device. flare RECEIVES the
// device from the host, it does not create one.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// flare-specific name for the interface while maintaining full
// compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle with nil implementations, for use when
// no host device exists (tests, headless backends).
type NullDeviceHandle struct{}

// Device returns nil for the null handle.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null handle.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null handle.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo returns zero adapter metadata for the null handle.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }

// SurfaceFormat returns undefined format for the null handle.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}

// DeviceConfig holds configuration for creating a Device.
type DeviceConfig struct {
	// Handle is the host-provided device access, NullDeviceHandle{} if the
	// backend needs none.
	Handle DeviceHandle

	// CacheLimitBytes is the resource cache budget.
	// Defaults to DefaultCacheLimitBytes if <= 0; positive values are
	// clamped to at least MinCacheLimitBytes.
	CacheLimitBytes int64
}

// Device owns one context and enforces single-writer access to it. All
// cache and task-graph mutation happens between LockContext and Unlock;
// that external lock is the sole concurrency boundary, by design — there is
// no fine-grained locking inside.
//
// Reference-counted handles obtained under the lock may be copied to and
// dropped from worker threads freely; only the final GPU-memory release
// waits for the next locked purge pass.
type Device struct {
	mu      sync.Mutex
	handle  DeviceHandle
	context *Context
	closed  bool
}

// NewDevice creates a device over the given backend.
func NewDevice(gpu Gpu, config DeviceConfig) (*Device, error) {
	if gpu == nil {
		return nil, ErrNilGpu
	}
	handle := config.Handle
	if handle == nil {
		handle = NullDeviceHandle{}
	}
	d := &Device{handle: handle}
	d.context = newContext(d, gpu, config.CacheLimitBytes)
	return d, nil
}

// Handle returns the host device access the device was created with.
func (d *Device) Handle() DeviceHandle { return d.handle }

// LockContext acquires exclusive access to the device's context and returns
// it. Every returned context must be balanced with Unlock. Returns nil if
// the device has been closed; the lock is not held in that case.
func (d *Device) LockContext() *Context {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	return d.context
}

// Unlock releases the access acquired by LockContext.
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// Close flushes nothing, frees every cached resource, and marks the device
// unusable. Safe to call once; later LockContext calls return nil.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.context.release()
	d.closed = true
}
