package device

import (
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// binaryShaders maps kernel names to their WGSL source. The broadcast
// addressing logic is identical across the four; only the combining
// expression differs.
var binaryShaders = map[string]string{
	"add": addShader,
	"sub": subShader,
	"mul": mulShader,
	"div": divShader,
}

var unaryShaders = map[string]string{
	"neg":      negShader,
	"relu":     reluShader,
	"reluGrad": reluGradShader,
}

// BinaryBroadcast runs one of the broadcast binary kernels (add, sub, mul,
// div) over n output elements. outStrides describe the contiguous output;
// aStrides and bStrides are the inputs' effective strides, already widened
// to the output rank with zeros in broadcast dimensions.
func (c *Context) BinaryBroadcast(name string, a, b *Buffer, outStrides, aStrides, bStrides []int, n int) (*Buffer, error) {
	code, ok := binaryShaders[name]
	if !ok {
		return nil, errors.Errorf("device: unknown binary kernel %q", name)
	}
	if len(outStrides) > MaxRank {
		return nil, errors.Errorf("device: rank %d exceeds kernel limit %d", len(outStrides), MaxRank)
	}

	shader := c.compileShader(name, code)
	pipeline := c.getOrCreatePipeline(name, shader)

	out, err := c.NewBuffer(uint64(n) * 4)
	if err != nil {
		return nil, err
	}

	var u uniformPacker
	u.putU32(uint32(len(outStrides)))
	u.putU32(uint32(n))
	u.putStrides(outStrides)
	u.putStrides(aStrides)
	u.putStrides(bStrides)
	params := c.createUniformBuffer(u.data)
	defer params.Release()

	workgroups := uint32((n + workgroupSize - 1) / workgroupSize)
	err = c.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, a.buf, 0, a.size),
		wgpu.BufferBindingEntry(1, b.buf, 0, b.size),
		wgpu.BufferBindingEntry(2, out.buf, 0, out.size),
		wgpu.BufferBindingEntry(3, params, 0, uint64((len(u.data)+15)&^15)),
	}, workgroups, 1, 1)
	if err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Unary runs one of the elementwise unary kernels (neg, relu, reluGrad)
// over n elements.
func (c *Context) Unary(name string, in *Buffer, n int) (*Buffer, error) {
	code, ok := unaryShaders[name]
	if !ok {
		return nil, errors.Errorf("device: unknown unary kernel %q", name)
	}

	shader := c.compileShader(name, code)
	pipeline := c.getOrCreatePipeline(name, shader)

	out, err := c.NewBuffer(uint64(n) * 4)
	if err != nil {
		return nil, err
	}

	var u uniformPacker
	u.putU32(uint32(n))
	params := c.createUniformBuffer(u.data)
	defer params.Release()

	workgroups := uint32((n + workgroupSize - 1) / workgroupSize)
	err = c.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, in.buf, 0, in.size),
		wgpu.BufferBindingEntry(1, out.buf, 0, out.size),
		wgpu.BufferBindingEntry(2, params, 0, 16),
	}, workgroups, 1, 1)
	if err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Sum reduces n input elements into a single-element buffer.
func (c *Context) Sum(in *Buffer, n int) (*Buffer, error) {
	shader := c.compileShader("sum", sumShader)
	pipeline := c.getOrCreatePipeline("sum", shader)

	out, err := c.NewBuffer(4)
	if err != nil {
		return nil, err
	}

	var u uniformPacker
	u.putU32(uint32(n))
	params := c.createUniformBuffer(u.data)
	defer params.Release()

	err = c.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, in.buf, 0, in.size),
		wgpu.BufferBindingEntry(1, out.buf, 0, out.size),
		wgpu.BufferBindingEntry(2, params, 0, 16),
	}, 1, 1, 1)
	if err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// MatMulArgs carries the geometry of one batched matmul dispatch.
// Row/column strides are per input so transposed views multiply in place.
type MatMulArgs struct {
	Batch, Height, Width, Shared int
	ARowStride, AColStride       int
	BRowStride, BColStride       int
}

// MatMul runs the batched stride-aware matrix multiply. The output is a
// contiguous (batch, height, width) buffer.
func (c *Context) MatMul(a, b *Buffer, args MatMulArgs) (*Buffer, error) {
	shader := c.compileShader("matmul", matmulShader)
	pipeline := c.getOrCreatePipeline("matmul", shader)

	n := args.Batch * args.Height * args.Width
	out, err := c.NewBuffer(uint64(n) * 4)
	if err != nil {
		return nil, err
	}

	var u uniformPacker
	u.putU32(uint32(args.Height))
	u.putU32(uint32(args.Width))
	u.putU32(uint32(args.Shared))
	u.putU32(uint32(args.Batch))
	u.putU32(uint32(args.ARowStride))
	u.putU32(uint32(args.AColStride))
	u.putU32(uint32(args.BRowStride))
	u.putU32(uint32(args.BColStride))
	params := c.createUniformBuffer(u.data)
	defer params.Release()

	gx := uint32((args.Width + 7) / 8)
	gy := uint32((args.Height + 7) / 8)
	gz := uint32(args.Batch)
	err = c.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, a.buf, 0, a.size),
		wgpu.BufferBindingEntry(1, b.buf, 0, b.size),
		wgpu.BufferBindingEntry(2, out.buf, 0, out.size),
		wgpu.BufferBindingEntry(3, params, 0, 32),
	}, gx, gy, gz)
	if err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}
