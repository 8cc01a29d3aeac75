package nn

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// MSELoss computes the sum of squared differences between prediction and
// target. The result is a single-element tensor suitable for Backward; the
// squared-error gradients flow back through the prediction's graph.
//
// The sum is not divided by the element count. Fold the 1/n into the
// learning rate if a mean is wanted.
func MSELoss(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := pred.Sub(target)
	if err != nil {
		return nil, err
	}
	sq, err := diff.Mul(diff)
	if err != nil {
		diff.Release()
		return nil, err
	}
	loss, err := sq.Sum()
	// The product's backward node retained its own views of diff, so both
	// intermediate handles can go right away.
	sq.Release()
	diff.Release()
	if err != nil {
		return nil, err
	}
	return loss, nil
}
