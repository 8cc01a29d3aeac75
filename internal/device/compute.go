package device

import (
	"encoding/binary"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Context's shaders map.
func (c *Context) compileShader(name, code string) *wgpu.ShaderModule {
	c.mu.RLock()
	if shader, exists := c.shaders[name]; exists {
		c.mu.RUnlock()
		return shader
	}
	c.mu.RUnlock()

	shader := c.device.CreateShaderModuleWGSL(code)

	c.mu.Lock()
	c.shaders[name] = shader
	c.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (c *Context) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	c.mu.RLock()
	if pipeline, exists := c.pipelines[name]; exists {
		c.mu.RUnlock()
		return pipeline
	}
	c.mu.RUnlock()

	// Auto layout (nil), bind groups come from the pipeline itself.
	pipeline := c.device.CreateComputePipelineSimple(nil, shader, "main")

	c.mu.Lock()
	c.pipelines[name] = pipeline
	c.mu.Unlock()

	return pipeline
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (c *Context) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15 // Round up to 16-byte boundary

	buffer := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	mapped := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mapped, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (c *Context) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	c.submitMu.Lock()
	encoder := c.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	c.queue.Submit(cmdBuffer)
	c.submitMu.Unlock()

	err := stagingBuffer.MapAsync(c.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, errors.Wrap(err, "device: map staging buffer")
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mapped)

	stagingBuffer.Unmap()

	return result, nil
}

// uniformPacker accumulates little-endian u32 fields for a Params struct.
type uniformPacker struct {
	data []byte
}

func (u *uniformPacker) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	u.data = append(u.data, b[:]...)
}

func (u *uniformPacker) putStrides(strides []int) {
	for _, s := range strides {
		u.putU32(uint32(s))
	}
	for i := len(strides); i < MaxRank; i++ {
		u.putU32(0)
	}
}

// dispatch runs one compute pass of the given pipeline over the bind group.
// Hard-failing wgpu calls panic inside the native layer; the recover turns
// that into an error so a lost device doesn't take the process down.
func (c *Context) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, x, y, z uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("device: dispatch failed: %v", r)
		}
	}()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := c.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	encoder := c.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(x, y, z)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	c.queue.Submit(cmdBuffer)
	return nil
}
