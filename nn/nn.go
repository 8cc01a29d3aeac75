// Copyright 2025 Kiln ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network building blocks on kiln tensors:
// trainable parameters, a linear layer and a squared-error loss.
package nn

import (
	"math/rand"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/nn"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Parameter represents a trainable parameter.
type Parameter = nn.Parameter

// Linear implements a fully connected layer: y = x·W + b.
type Linear = nn.Linear

// NewParameter creates a new trainable parameter, marking the tensor as a
// gradient leaf.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// NewLinear creates a linear layer with uniformly initialized weights and
// a zero bias.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	layer, err := nn.NewLinear(ctx, rng, 784, 10)
func NewLinear(ctx *device.Context, rng *rand.Rand, inFeatures, outFeatures int) (*Linear, error) {
	return nn.NewLinear(ctx, rng, inFeatures, outFeatures)
}

// MSELoss computes the sum of squared differences between prediction and
// target as a single-element tensor.
func MSELoss(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	return nn.MSELoss(pred, target)
}
