package tensor

import "github.com/kiln-ml/kiln/internal/device"

// The compute* helpers run kernels without touching the backward graph.
// Public operations wrap them and attach a node when any operand tracks
// gradients; backward routines call them directly so the graph doesn't
// grow while it is being walked.

func computeBinary(name string, a, b *Tensor) (*Tensor, error) {
	outShape, effA, effB, err := broadcastPlan(a.shape, a.strides, b.shape, b.strides)
	if err != nil {
		return nil, err
	}
	outStrides := outShape.ComputeStrides()
	buf, err := a.ctx.BinaryBroadcast(name, a.buf, b.buf, outStrides, effA, effB, outShape.NumElements())
	if err != nil {
		return nil, err
	}
	return newTensor(a.ctx, buf, outShape), nil
}

// computeUnary applies an elementwise kernel over the raw buffer. The
// result inherits the input's strides, so views stay views: negating a
// transposed tensor yields a transposed result over a fresh buffer.
func computeUnary(name string, t *Tensor) (*Tensor, error) {
	buf, err := t.ctx.Unary(name, t.buf, t.NumElements())
	if err != nil {
		return nil, err
	}
	return &Tensor{
		ctx:     t.ctx,
		buf:     buf,
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
	}, nil
}

func computeSum(t *Tensor) (*Tensor, error) {
	buf, err := t.ctx.Sum(t.buf, t.NumElements())
	if err != nil {
		return nil, err
	}
	// Rank is preserved with every extent collapsed to 1, so the result
	// broadcasts back against the input shape.
	outShape := make(Shape, len(t.shape))
	for i := range outShape {
		outShape[i] = 1
	}
	return newTensor(t.ctx, buf, outShape), nil
}

func computeMatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) < 2 || len(b.shape) < 2 {
		return nil, &ShapeMismatchError{
			A: a.shape.Clone(), B: b.shape.Clone(), Reason: "matmul requires rank >= 2",
		}
	}
	if len(a.shape) != len(b.shape) {
		return nil, &ShapeMismatchError{
			A: a.shape.Clone(), B: b.shape.Clone(), Reason: "rank mismatch",
		}
	}
	r := len(a.shape)
	height, shared, width := a.shape[r-2], a.shape[r-1], b.shape[r-1]
	if b.shape[r-2] != shared {
		return nil, &DimensionMismatchError{A: a.shape.Clone(), B: b.shape.Clone()}
	}
	batch := 1
	for i := 0; i < r-2; i++ {
		if a.shape[i] != b.shape[i] {
			return nil, &ShapeMismatchError{A: a.shape.Clone(), B: b.shape.Clone(), Dim: i}
		}
		batch *= a.shape[i]
	}

	buf, err := a.ctx.MatMul(a.buf, b.buf, device.MatMulArgs{
		Batch:      batch,
		Height:     height,
		Width:      width,
		Shared:     shared,
		ARowStride: a.strides[r-2],
		AColStride: a.strides[r-1],
		BRowStride: b.strides[r-2],
		BColStride: b.strides[r-1],
	})
	if err != nil {
		return nil, err
	}

	outShape := a.shape.Clone()
	outShape[r-2], outShape[r-1] = height, width
	return newTensor(a.ctx, buf, outShape), nil
}

// transposeLast returns a last-two-axes transposed view without any
// backward-node sharing. Backward routines use it for gradient matmuls.
func transposeLast(t *Tensor) *Tensor {
	r := len(t.shape)
	v := &Tensor{
		ctx:     t.ctx,
		buf:     t.buf.Retain(),
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
	}
	v.shape[r-2], v.shape[r-1] = v.shape[r-1], v.shape[r-2]
	v.strides[r-2], v.strides[r-1] = v.strides[r-1], v.strides[r-2]
	return v
}

// Add returns the broadcast elementwise sum of t and other.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	out, err := computeBinary("add", t, other)
	if err != nil {
		return nil, err
	}
	if t.node != nil || other.node != nil {
		out.node = &addNode{prev1: t.node, prev2: other.node}
	}
	return out, nil
}

// Sub returns the broadcast elementwise difference of t and other.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	out, err := computeBinary("sub", t, other)
	if err != nil {
		return nil, err
	}
	if t.node != nil || other.node != nil {
		out.node = &subNode{prev1: t.node, prev2: other.node}
	}
	return out, nil
}

// Mul returns the broadcast elementwise product of t and other. When a
// gradient is tracked the backward node retains its own views of both
// operands, so the caller may release them after the call.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	out, err := computeBinary("mul", t, other)
	if err != nil {
		return nil, err
	}
	if t.node != nil || other.node != nil {
		out.node = &mulNode{
			a: retainView(t), b: retainView(other),
			prev1: t.node, prev2: other.node,
		}
	}
	return out, nil
}

// Div returns the broadcast elementwise quotient of t and other.
// Division does not participate in gradient tracking.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) {
	return computeBinary("div", t, other)
}

// Neg returns the elementwise negation of t.
func (t *Tensor) Neg() (*Tensor, error) {
	out, err := computeUnary("neg", t)
	if err != nil {
		return nil, err
	}
	if t.node != nil {
		out.node = &negNode{prev: t.node}
	}
	return out, nil
}

// ReLU returns max(0, x) elementwise. When a gradient is tracked the
// backward node retains its own view of the input for the mask.
func (t *Tensor) ReLU() (*Tensor, error) {
	out, err := computeUnary("relu", t)
	if err != nil {
		return nil, err
	}
	if t.node != nil {
		out.node = &reluNode{input: retainView(t), prev: t.node}
	}
	return out, nil
}

// ReLUGrad returns the ReLU derivative mask: 1 where x > 0, else 0.
func (t *Tensor) ReLUGrad() (*Tensor, error) {
	return computeUnary("reluGrad", t)
}

// Sum reduces all elements to a single value. The result keeps the input's
// rank with every extent set to 1.
func (t *Tensor) Sum() (*Tensor, error) {
	out, err := computeSum(t)
	if err != nil {
		return nil, err
	}
	if t.node != nil {
		out.node = &sumNode{ctx: t.ctx, inShape: t.shape.Clone(), prev: t.node}
	}
	return out, nil
}

// MatMul returns the batched matrix product of t and other. Both operands
// need rank ≥ 2 with matching leading (batch) dimensions; the last two
// axes multiply as (height, shared) × (shared, width). Transposed views
// multiply directly through their strides, no copy is made. When a
// gradient is tracked the backward node retains its own views of both
// operands.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	out, err := computeMatMul(t, other)
	if err != nil {
		return nil, err
	}
	if t.node != nil || other.node != nil {
		out.node = &matmulNode{
			a: retainView(t), b: retainView(other),
			prev1: t.node, prev2: other.node,
		}
	}
	return out, nil
}
