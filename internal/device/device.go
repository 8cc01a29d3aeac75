// Package device implements the WebGPU execution layer for kiln tensors.
// It owns the adapter/device/queue handles, the shader and pipeline caches,
// and the pooled buffer allocator every kernel dispatch goes through.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package device

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Context is a handle to one WebGPU device. All tensors created through a
// Context live on that device; mixing buffers across contexts is not
// supported. A Context is safe for concurrent use.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Serializes command submission; wgpu queues tolerate concurrent
	// submits, but readbacks need the matching submit to land first.
	submitMu sync.Mutex

	adapterInfo *wgpu.AdapterInfoGo

	pool *BufferPool
}

// New creates a Context on the highest-performance adapter available.
// Returns an error if WebGPU is not available or initialization fails.
func New() (ctx *Context, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = errors.Errorf("device: native webgpu library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, errors.Wrap(instErr, "device: create instance")
	}

	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrap(adapterErr, "device: request adapter")
	}

	info, _ := adapter.GetInfo()

	dev, devErr := adapter.RequestDevice(nil)
	if devErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(devErr, "device: request device")
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("device: no default queue")
	}

	c := &Context{
		instance:    instance,
		adapter:     adapter,
		device:      dev,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: info,
	}
	c.pool = NewBufferPool(dev)
	return c, nil
}

// IsAvailable reports whether a WebGPU device can be initialized.
// It fully initializes and releases a Context, so it is not cheap;
// callers that need a device afterwards should just call New.
func IsAvailable() bool {
	c, err := New()
	if err != nil {
		return false
	}
	c.Release()
	return true
}

// ListAdapters returns information about the available GPU adapters.
// WebGPU has no enumeration API, so this reports the default adapter.
func ListAdapters() (adapters []*wgpu.AdapterInfoGo, err error) {
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = errors.Errorf("device: native webgpu library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, errors.Wrap(instErr, "device: create instance")
	}
	defer instance.Release()

	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return nil, errors.Wrap(adapterErr, "device: no adapters available")
	}
	defer adapter.Release()

	info, infoErr := adapter.GetInfo()
	if infoErr != nil {
		return nil, errors.Wrap(infoErr, "device: get adapter info")
	}
	return []*wgpu.AdapterInfoGo{info}, nil
}

// Name returns a human-readable adapter description.
func (c *Context) Name() string {
	if c.adapterInfo == nil {
		return "WebGPU (unknown adapter)"
	}
	return c.adapterInfo.Device
}

// AdapterInfo returns raw adapter info, or nil if the driver did not report it.
func (c *Context) AdapterInfo() *wgpu.AdapterInfoGo {
	return c.adapterInfo
}

// PoolStats returns allocation statistics from the buffer pool.
func (c *Context) PoolStats() PoolStats {
	return c.pool.Stats()
}

// Release frees all cached pipelines, pooled buffers and device handles.
// The Context must not be used afterwards. Buffers still referenced by
// live tensors are not reclaimed here; release those tensors first.
func (c *Context) Release() {
	c.mu.Lock()
	for _, p := range c.pipelines {
		p.Release()
	}
	c.pipelines = make(map[string]*wgpu.ComputePipeline)
	for _, s := range c.shaders {
		s.Release()
	}
	c.shaders = make(map[string]*wgpu.ShaderModule)
	c.mu.Unlock()

	c.pool.Clear()

	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}
