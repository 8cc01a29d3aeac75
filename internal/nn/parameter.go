package nn

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors marked as gradient leaves. During a backward pass
// their accumulators collect the gradient, which the optimizer then reads.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad, err := weight.Grad() // after a backward pass
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter creates a new trainable parameter. The tensor is marked as
// a gradient leaf; it should be initialized before wrapping.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t.RequireGrad(),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient accumulated since the last ZeroGrad.
// Returns UngradientedTensorError if no backward pass has reached this
// parameter yet.
func (p *Parameter) Grad() (*tensor.Tensor, error) {
	return p.tensor.Grad()
}

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.tensor.ZeroGrad()
}
