package tensor

import (
	"math/rand"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/parallel"
)

// hostParallel drives multi-core staging of upload buffers and strided
// readbacks. Random fills stay sequential: rand.Rand is not safe for
// concurrent use and seeded runs must stay reproducible.
var hostParallel = parallel.DefaultConfig()

// New allocates a zero-filled tensor. Pooled device buffers carry stale
// data from previous tensors, so the zeros are uploaded explicitly.
func New(ctx *device.Context, shape Shape) (*Tensor, error) {
	return Full(ctx, 0, shape)
}

// FromSlice uploads host data into a new tensor of the given shape.
// The data length must match the shape's element count exactly.
func FromSlice(ctx *device.Context, data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, &ShapeMismatchError{A: shape.Clone(), B: Shape{len(data)}}
	}
	buf, err := ctx.NewBufferFromFloat32(data)
	if err != nil {
		return nil, &AllocationError{Bytes: uint64(len(data)) * 4, Err: err}
	}
	return newTensor(ctx, buf, shape), nil
}

// Full creates a tensor with every element set to value.
func Full(ctx *device.Context, value float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	data := make([]float32, shape.NumElements())
	parallel.For(len(data), func(i int) { data[i] = value }, hostParallel)
	return FromSlice(ctx, data, shape)
}

// Zeros creates a zero-filled tensor.
func Zeros(ctx *device.Context, shape Shape) (*Tensor, error) {
	return Full(ctx, 0, shape)
}

// Ones creates a one-filled tensor.
func Ones(ctx *device.Context, shape Shape) (*Tensor, error) {
	return Full(ctx, 1, shape)
}

// RandUniform creates a tensor with elements drawn uniformly from [lo, hi).
// The caller supplies the source, so runs are reproducible by seed.
func RandUniform(ctx *device.Context, rng *rand.Rand, lo, hi float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = lo + rng.Float32()*(hi-lo)
	}
	return FromSlice(ctx, data, shape)
}

// RandNormal creates a tensor with elements drawn from N(mean, std²).
func RandNormal(ctx *device.Context, rng *rand.Rand, mean, std float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = mean + std*float32(rng.NormFloat64())
	}
	return FromSlice(ctx, data, shape)
}
