package optim

import (
	"errors"

	"github.com/kiln-ml/kiln/internal/nn"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// SGD implements stochastic gradient descent.
//
// Update rule:
//
//	param = param - lr * gradient
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})
//
//	for epoch := 0; epoch < epochs; epoch++ {
//	    loss := trainStep(model, batch)
//	    loss.Backward()
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
type SGD struct {
	params []*nn.Parameter
	lr     float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR float32 // Learning rate (default: 0.01)
}

// NewSGD creates a new SGD optimizer over the given parameters.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params: params,
		lr:     config.LR,
	}
}

// Step applies one gradient descent update to every parameter.
// Parameters that no backward pass has reached are skipped.
func (s *SGD) Step() error {
	for _, param := range s.params {
		grad, err := param.Grad()
		if err != nil {
			var ung *tensor.UngradientedTensorError
			if errors.As(err, &ung) {
				continue
			}
			return err
		}

		p := param.Tensor()

		// Broadcast parameters (a (1, n) bias added over a batch) receive
		// their gradient at the batch shape; contract it back down before
		// updating.
		reduced, owned, err := reduceTo(grad, p.Shape())
		if err != nil {
			return err
		}

		lr, err := tensor.Full(p.Context(), s.lr, reduced.Shape())
		if err != nil {
			if owned {
				reduced.Release()
			}
			return err
		}
		scaled, err := reduced.Mul(lr)
		lr.Release()
		if owned {
			reduced.Release()
		}
		if err != nil {
			return err
		}
		updated, err := p.Sub(scaled)
		scaled.Release()
		if err != nil {
			return err
		}
		if err := p.Assign(updated); err != nil {
			updated.Release()
			return err
		}
		updated.Release()
	}
	return nil
}

// reduceTo sums a gradient down to the parameter's shape when the forward
// pass broadcast the parameter over a batch. The contraction is a matmul
// with a row of ones, so it stays on the device. Returns the gradient
// itself (owned=false) when shapes already match.
func reduceTo(grad *tensor.Tensor, shape tensor.Shape) (*tensor.Tensor, bool, error) {
	if grad.Shape().Equal(shape) {
		return grad, false, nil
	}
	gs := grad.Shape()
	if len(gs) == 2 && len(shape) == 2 && shape[0] == 1 && gs[1] == shape[1] {
		ones, err := tensor.Ones(grad.Context(), tensor.Shape{1, gs[0]})
		if err != nil {
			return nil, false, err
		}
		reduced, err := ones.MatMul(grad)
		ones.Release()
		if err != nil {
			return nil, false, err
		}
		return reduced, true, nil
	}
	return nil, false, &tensor.ShapeMismatchError{A: gs.Clone(), B: shape.Clone()}
}

// ZeroGrad clears every parameter's accumulated gradient. Call between
// steps so gradients from one batch don't bleed into the next.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// LR returns the learning rate.
func (s *SGD) LR() float32 { return s.lr }
