package device

import (
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// storageUsage is the usage every tensor buffer carries: readable and
// writable from shaders, copyable in both directions for upload/readback.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Buffer is a reference-counted GPU storage buffer. Transposed views share
// the underlying buffer with their base tensor, so the last release wins:
// the buffer goes back to the pool only when the count reaches zero.
//
// size is what the holder asked for and what bindings cover; capacity is
// the real allocation, which can be larger when the pool reuses a bigger
// buffer. The buffer is re-pooled under its capacity so it never shrinks.
type Buffer struct {
	buf      *wgpu.Buffer
	size     uint64
	capacity uint64
	usage    wgpu.BufferUsage
	pool     *BufferPool
	refs     atomic.Int32
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Retain adds a reference. Each Retain must be paired with a Release.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops a reference. When the count reaches zero the underlying
// GPU buffer is returned to the pool. Releasing an already-dead buffer
// is a no-op so double releases in cleanup paths stay harmless.
func (b *Buffer) Release() {
	if b == nil || b.buf == nil {
		return
	}
	if b.refs.Add(-1) > 0 {
		return
	}
	b.pool.Release(b.buf, b.capacity, b.usage)
	b.buf = nil
}

// NewBuffer allocates an uninitialized storage buffer of the given byte size.
// Contents are undefined until written; callers upload or dispatch into it.
func (c *Context) NewBuffer(size uint64) (b *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = errors.Errorf("device: buffer allocation of %d bytes failed: %v", size, r)
		}
	}()
	raw, capacity := c.pool.Acquire(size, storageUsage)
	b = &Buffer{buf: raw, size: size, capacity: capacity, usage: storageUsage, pool: c.pool}
	b.refs.Store(1)
	return b, nil
}

// NewBufferFromFloat32 allocates a storage buffer and uploads data into it.
func (c *Context) NewBufferFromFloat32(data []float32) (b *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = errors.Errorf("device: buffer upload of %d elements failed: %v", len(data), r)
		}
	}()

	size := uint64(len(data)) * 4
	raw := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := raw.GetMappedRange(0, size)
	mapped := unsafe.Slice((*float32)(mappedPtr), len(data))
	copy(mapped, data)
	raw.Unmap()

	b = &Buffer{buf: raw, size: size, capacity: size, usage: storageUsage, pool: c.pool}
	b.refs.Store(1)
	return b, nil
}

// ReadFloat32 copies the whole buffer back to host memory.
func (c *Context) ReadFloat32(b *Buffer) ([]float32, error) {
	raw, err := c.readBuffer(b.buf, b.size)
	if err != nil {
		return nil, err
	}
	n := len(raw) / 4
	out := make([]float32, n)
	copy(out, unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n))
	return out, nil
}

// ReadFloat32At reads a single element at the given element offset. Only
// four bytes cross the bus, which keeps point lookups on big tensors cheap.
func (c *Context) ReadFloat32At(b *Buffer, elem int) (float32, error) {
	staging := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  4,
	})
	defer staging.Release()

	c.submitMu.Lock()
	encoder := c.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(b.buf, uint64(elem)*4, staging, 0, 4)
	cmd := encoder.Finish(nil)
	c.queue.Submit(cmd)
	c.submitMu.Unlock()

	if err := staging.MapAsync(c.device, wgpu.MapModeRead, 0, 4); err != nil {
		return 0, errors.Wrap(err, "device: map staging buffer")
	}
	mappedPtr := staging.GetMappedRange(0, 4)
	v := *(*float32)(mappedPtr)
	staging.Unmap()
	return v, nil
}
