package nn

import (
	"math"
	"math/rand"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Linear implements a fully connected layer: y = x·W + b.
//
// Weight has shape (in, out) so the forward pass is a plain matmul on a
// (batch, in) input. Bias has shape (1, out) and broadcasts over the batch
// dimension.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a linear layer with weights drawn uniformly from
// [-1/√in, 1/√in] and a zero bias.
func NewLinear(ctx *device.Context, rng *rand.Rand, inFeatures, outFeatures int) (*Linear, error) {
	bound := float32(1.0 / math.Sqrt(float64(inFeatures)))
	w, err := tensor.RandUniform(ctx, rng, -bound, bound, tensor.Shape{inFeatures, outFeatures})
	if err != nil {
		return nil, err
	}
	b, err := tensor.Zeros(ctx, tensor.Shape{1, outFeatures})
	if err != nil {
		w.Release()
		return nil, err
	}

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", w),
		bias:        NewParameter("bias", b),
	}, nil
}

// Forward computes x·W + b for a (batch, in) input.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := x.MatMul(l.weight.Tensor())
	if err != nil {
		return nil, err
	}
	out, err := h.Add(l.bias.Tensor())
	// The matmul node retained its own views of x and W; nothing in the
	// backward pass reads h itself, so its handle can go right away.
	h.Release()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Parameters returns the layer's trainable parameters.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// InFeatures returns the input dimension.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output dimension.
func (l *Linear) OutFeatures() int { return l.outFeatures }
