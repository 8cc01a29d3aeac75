// Copyright 2025 Kiln ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"io"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/serialization"
)

// Save writes named tensors to w in the .kiln format. Transposed views are
// written in logical row-major order.
func Save(w io.Writer, tensors map[string]*Tensor) error {
	return serialization.Save(w, tensors)
}

// Load reads a .kiln file and materializes its tensors on ctx.
func Load(ctx *device.Context, r io.Reader) (map[string]*Tensor, error) {
	return serialization.Load(ctx, r)
}
