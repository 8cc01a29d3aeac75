package tensor

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/device"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid: all dimensions > 0 and the rank
// within what the kernels can address.
func (s Shape) Validate() error {
	if len(s) > device.MaxRank {
		return &ShapeMismatchError{
			A:      s.Clone(),
			Reason: fmt.Sprintf("rank %d exceeds the supported maximum %d", len(s), device.MaxRank),
		}
	}
	for i, dim := range s {
		if dim <= 0 {
			return &ShapeMismatchError{A: s.Clone(), Dim: i, Invalid: true}
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// broadcastPlan resolves the output shape and per-input effective strides
// for a binary operation between tensors of equal rank.
//
// Per dimension, extents must either match or one of them must be 1. The
// widened operand gets stride 0 in that dimension, so the kernel re-reads
// its single element across the whole output extent. Rank mismatches are
// rejected up front; there is no implicit left-padding with ones.
//
// Examples:
//
//	(3, 1) + (3, 4) → out (3, 4), a strides (1, 0)
//	(2, 3) + (2, 3) → out (2, 3), both strides unchanged
//	(3,)   + (3, 4) → ShapeMismatchError (rank mismatch)
//	(3, 2) + (3, 4) → ShapeMismatchError (dimension 1)
func broadcastPlan(aShape Shape, aStrides []int, bShape Shape, bStrides []int) (Shape, []int, []int, error) {
	if len(aShape) != len(bShape) {
		return nil, nil, nil, &ShapeMismatchError{
			A: aShape.Clone(), B: bShape.Clone(), Reason: "rank mismatch",
		}
	}

	rank := len(aShape)
	out := make(Shape, rank)
	effA := make([]int, rank)
	effB := make([]int, rank)

	for i := 0; i < rank; i++ {
		switch {
		case aShape[i] == bShape[i]:
			out[i] = aShape[i]
			effA[i] = aStrides[i]
			effB[i] = bStrides[i]
		case aShape[i] == 1:
			out[i] = bShape[i]
			effA[i] = 0
			effB[i] = bStrides[i]
		case bShape[i] == 1:
			out[i] = aShape[i]
			effA[i] = aStrides[i]
			effB[i] = 0
		default:
			return nil, nil, nil, &ShapeMismatchError{
				A: aShape.Clone(), B: bShape.Clone(), Dim: i,
			}
		}
	}

	return out, effA, effB, nil
}
