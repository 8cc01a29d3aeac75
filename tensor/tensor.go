// Copyright 2025 Kiln ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public API for GPU-resident tensors with
// reverse-mode automatic differentiation.
//
// Example:
//
//	ctx, err := gpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Release()
//
//	a, _ := tensor.FromSlice(ctx, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	b, _ := tensor.FromSlice(ctx, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
//	c, _ := a.MatMul(b)
//	fmt.Println(c)
package tensor

import (
	"math/rand"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Tensor is an n-dimensional float32 array stored on the GPU.
type Tensor = tensor.Tensor

// Error kinds returned by tensor operations.
type (
	// ShapeMismatchError reports incompatible or invalid shapes.
	ShapeMismatchError = tensor.ShapeMismatchError
	// DimensionMismatchError reports a matmul shared-dimension mismatch.
	DimensionMismatchError = tensor.DimensionMismatchError
	// IndexOutOfRangeError reports an index outside a tensor's bounds.
	IndexOutOfRangeError = tensor.IndexOutOfRangeError
	// UngradientedTensorError reports a gradient query with no gradient recorded.
	UngradientedTensorError = tensor.UngradientedTensorError
	// ReleasedGraphError reports a backward pass over a released graph.
	ReleasedGraphError = tensor.ReleasedGraphError
	// AllocationError reports a failed device buffer allocation.
	AllocationError = tensor.AllocationError
)

// New allocates a zero-filled tensor.
func New(ctx *device.Context, shape Shape) (*Tensor, error) {
	return tensor.New(ctx, shape)
}

// FromSlice uploads host data into a new tensor of the given shape.
//
// Example:
//
//	t, err := tensor.FromSlice(ctx, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(ctx *device.Context, data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(ctx, data, shape)
}

// Full creates a tensor with every element set to value.
func Full(ctx *device.Context, value float32, shape Shape) (*Tensor, error) {
	return tensor.Full(ctx, value, shape)
}

// Zeros creates a zero-filled tensor.
func Zeros(ctx *device.Context, shape Shape) (*Tensor, error) {
	return tensor.Zeros(ctx, shape)
}

// Ones creates a one-filled tensor.
func Ones(ctx *device.Context, shape Shape) (*Tensor, error) {
	return tensor.Ones(ctx, shape)
}

// RandUniform creates a tensor with elements drawn uniformly from [lo, hi).
func RandUniform(ctx *device.Context, rng *rand.Rand, lo, hi float32, shape Shape) (*Tensor, error) {
	return tensor.RandUniform(ctx, rng, lo, hi, shape)
}

// RandNormal creates a tensor with elements drawn from N(mean, std²).
func RandNormal(ctx *device.Context, rng *rand.Rand, mean, std float32, shape Shape) (*Tensor, error) {
	return tensor.RandNormal(ctx, rng, mean, std, shape)
}
