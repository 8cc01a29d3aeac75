package device

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// BufferSize represents different buffer size categories for pooling.
type BufferSize int

const (
	// SmallBuffer for tensors < 4KB.
	SmallBuffer BufferSize = iota
	// MediumBuffer for tensors 4KB-1MB.
	MediumBuffer
	// LargeBuffer for tensors > 1MB.
	LargeBuffer
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 100         // Max buffers per category
)

// pooledBuffer wraps a GPU buffer with metadata.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// BufferPool manages GPU buffer reuse to reduce allocation overhead.
// Buffers are categorized by size and usage flags.
type BufferPool struct {
	device *wgpu.Device

	small  []*pooledBuffer
	medium []*pooledBuffer
	large  []*pooledBuffer

	mu sync.Mutex

	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	TotalAllocated uint64
	TotalReleased  uint64
	Hits           uint64
	Misses         uint64
	Pooled         int
}

// NewBufferPool creates a new buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		small:  make([]*pooledBuffer, 0, maxPoolSize),
		medium: make([]*pooledBuffer, 0, maxPoolSize),
		large:  make([]*pooledBuffer, 0, maxPoolSize),
	}
}

// Acquire gets a buffer from the pool or creates a new one. The second
// return is the buffer's real capacity, which may exceed the requested
// size when a pooled buffer is reused; callers must hand that capacity
// back to Release so the buffer keeps its category.
// Pooled buffers keep their previous contents; callers must overwrite.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	category := p.categorize(size)
	pool := p.getPool(category)

	for i, pb := range pool {
		if pb.size >= size && pb.usage&usage == usage {
			buffer, capacity := pb.buffer, pb.size
			p.removeFromPool(category, i)
			p.poolHits++
			return buffer, capacity
		}
	}

	p.poolMisses++
	p.totalAllocated++

	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	}), size
}

// Release returns a buffer to the pool for reuse.
// If the pool is full, the buffer is released immediately.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalReleased++

	category := p.categorize(size)
	pool := p.getPool(category)

	if len(pool) >= maxPoolSize {
		buffer.Release()
		return
	}

	p.addToPool(category, &pooledBuffer{
		buffer: buffer,
		size:   size,
		usage:  usage,
	})
}

// Clear releases all pooled buffers.
// Should be called when the Context is released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pb := range p.small {
		pb.buffer.Release()
	}
	p.small = p.small[:0]

	for _, pb := range p.medium {
		pb.buffer.Release()
	}
	p.medium = p.medium[:0]

	for _, pb := range p.large {
		pb.buffer.Release()
	}
	p.large = p.large[:0]
}

// Stats returns a snapshot of pool counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		TotalAllocated: p.totalAllocated,
		TotalReleased:  p.totalReleased,
		Hits:           p.poolHits,
		Misses:         p.poolMisses,
		Pooled:         len(p.small) + len(p.medium) + len(p.large),
	}
}

func (p *BufferPool) categorize(size uint64) BufferSize {
	switch {
	case size < smallThreshold:
		return SmallBuffer
	case size < mediumThreshold:
		return MediumBuffer
	default:
		return LargeBuffer
	}
}

func (p *BufferPool) getPool(category BufferSize) []*pooledBuffer {
	switch category {
	case SmallBuffer:
		return p.small
	case MediumBuffer:
		return p.medium
	default:
		return p.large
	}
}

func (p *BufferPool) addToPool(category BufferSize, pb *pooledBuffer) {
	switch category {
	case SmallBuffer:
		p.small = append(p.small, pb)
	case MediumBuffer:
		p.medium = append(p.medium, pb)
	default:
		p.large = append(p.large, pb)
	}
}

func (p *BufferPool) removeFromPool(category BufferSize, i int) {
	switch category {
	case SmallBuffer:
		p.small = append(p.small[:i], p.small[i+1:]...)
	case MediumBuffer:
		p.medium = append(p.medium[:i], p.medium[i+1:]...)
	default:
		p.large = append(p.large[:i], p.large[i+1:]...)
	}
}
