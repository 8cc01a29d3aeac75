// Package tensor implements GPU-resident n-dimensional arrays with
// reverse-mode automatic differentiation. Every tensor's data lives in a
// device buffer; host code only sees values through explicit readback.
package tensor

import (
	"fmt"
	"strings"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/parallel"
)

// Tensor is an n-dimensional array of float32 stored on the GPU.
//
// A Tensor pairs a device buffer with a shape and row-major strides.
// Transposed views share the buffer of their base tensor; the buffer is
// reference counted and freed when the last holder calls Release.
//
// If the tensor participates in gradient tracking, node points at the
// backward-graph node that routes incoming gradients to its inputs.
type Tensor struct {
	ctx     *device.Context
	buf     *device.Buffer
	shape   Shape
	strides []int
	node    node
}

func newTensor(ctx *device.Context, buf *device.Buffer, shape Shape) *Tensor {
	return &Tensor{
		ctx:     ctx,
		buf:     buf,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
	}
}

// Context returns the device context this tensor lives on.
func (t *Tensor) Context() *device.Context { return t.ctx }

// Shape returns the tensor's shape. The slice is shared; don't mutate it.
func (t *Tensor) Shape() Shape { return t.shape }

// Strides returns the tensor's row-major strides in elements.
func (t *Tensor) Strides() []int { return t.strides }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// NumElements returns the total element count.
func (t *Tensor) NumElements() int { return t.shape.NumElements() }

// ByteSize returns the size of the tensor's data in bytes.
func (t *Tensor) ByteSize() int { return t.NumElements() * 4 }

// contiguous reports whether the tensor's strides match the canonical
// row-major layout of its shape.
func (t *Tensor) contiguous() bool {
	canon := t.shape.ComputeStrides()
	for i := range canon {
		if t.strides[i] != canon[i] {
			return false
		}
	}
	return true
}

// At reads a single element. One index per dimension; only four bytes are
// copied back from the device.
func (t *Tensor) At(indices ...int) (float32, error) {
	if len(indices) != len(t.shape) {
		return 0, &ShapeMismatchError{
			A: t.shape.Clone(), B: Shape(indices), Reason: "index count does not match rank",
		}
	}
	offset := 0
	for axis, idx := range indices {
		if idx < 0 || idx >= t.shape[axis] {
			return 0, &IndexOutOfRangeError{Index: idx, Axis: axis, Shape: t.shape.Clone()}
		}
		offset += idx * t.strides[axis]
	}
	return t.ctx.ReadFloat32At(t.buf, offset)
}

// Item reads the value of a single-element tensor.
func (t *Tensor) Item() (float32, error) {
	if t.NumElements() != 1 {
		return 0, &ShapeMismatchError{A: t.shape.Clone()}
	}
	return t.ctx.ReadFloat32At(t.buf, 0)
}

// Data copies the whole tensor back to host memory in logical row-major
// order. Transposed views are gathered through their strides, so the result
// always matches what At would return index by index.
func (t *Tensor) Data() ([]float32, error) {
	raw, err := t.ctx.ReadFloat32(t.buf)
	if err != nil {
		return nil, err
	}
	if t.contiguous() {
		return raw, nil
	}

	n := t.NumElements()
	out := make([]float32, n)
	outStrides := t.shape.ComputeStrides()
	parallel.For(n, func(i int) {
		rem := i
		src := 0
		for d := range t.shape {
			pos := rem / outStrides[d]
			rem -= pos * outStrides[d]
			src += pos * t.strides[d]
		}
		out[i] = raw[src]
	}, hostParallel)
	return out, nil
}

// Transpose returns a view with the two axes swapped. No data moves: the
// view shares this tensor's buffer with shape and strides exchanged, so a
// double transpose restores the original layout. The view also shares this
// tensor's backward node; gradients flow to wherever the base routes them.
func (t *Tensor) Transpose(dim1, dim2 int) (*Tensor, error) {
	if dim1 < 0 || dim1 >= len(t.shape) {
		return nil, &IndexOutOfRangeError{Index: dim1, Axis: dim1, Shape: t.shape.Clone()}
	}
	if dim2 < 0 || dim2 >= len(t.shape) {
		return nil, &IndexOutOfRangeError{Index: dim2, Axis: dim2, Shape: t.shape.Clone()}
	}

	view := &Tensor{
		ctx:     t.ctx,
		buf:     t.buf.Retain(),
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
		node:    t.node,
	}
	view.shape[dim1], view.shape[dim2] = view.shape[dim2], view.shape[dim1]
	view.strides[dim1], view.strides[dim2] = view.strides[dim2], view.strides[dim1]
	return view, nil
}

// Release drops this tensor's reference on its device buffer. Views and
// their base tensors count separately; the buffer is reclaimed when the
// last reference goes.
func (t *Tensor) Release() {
	if t.buf != nil {
		t.buf.Release()
		t.buf = nil
	}
}

// Assign replaces this tensor's storage with src's, keeping the backward
// node. Used for in-place style parameter updates: the parameter identity
// (and its gradient accumulator) survives while the data is swapped out.
func (t *Tensor) Assign(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return &ShapeMismatchError{A: t.shape.Clone(), B: src.shape.Clone()}
	}
	src.buf.Retain()
	t.buf.Release()
	t.buf = src.buf
	t.strides = append([]int(nil), src.strides...)
	return nil
}

// RequireGrad marks this tensor as a gradient leaf. Backward passes that
// reach it sum incoming gradients into an accumulator readable via Grad.
// Returns the tensor for chaining.
func (t *Tensor) RequireGrad() *Tensor {
	t.node = &accumulateNode{}
	return t
}

// Grad returns the gradient accumulated by backward passes since the last
// ZeroGrad. Returns UngradientedTensorError if the tensor is not a leaf or
// no backward pass has reached it.
func (t *Tensor) Grad() (*Tensor, error) {
	acc, ok := t.node.(*accumulateNode)
	if !ok || acc.grad == nil {
		return nil, &UngradientedTensorError{}
	}
	return acc.grad, nil
}

// ZeroGrad clears the accumulated gradient, releasing its buffer.
func (t *Tensor) ZeroGrad() {
	if acc, ok := t.node.(*accumulateNode); ok && acc.grad != nil {
		acc.grad.Release()
		acc.grad = nil
	}
}

// Backward runs reverse-mode differentiation from this tensor, seeding it
// with a gradient of ones. Gradients are routed through the recorded
// operation nodes down to every leaf that called RequireGrad; a leaf
// reached along several paths receives the sum.
func (t *Tensor) Backward() error {
	if t.node == nil {
		return &UngradientedTensorError{}
	}
	seed, err := Ones(t.ctx, t.shape)
	if err != nil {
		return err
	}
	err = t.node.apply(seed)
	seed.Release()
	return err
}

// ReleaseGraph tears down the backward graph this tensor heads. Every
// recorded node drops the operand views it retained and their buffers go
// back to the pool. Gradients already accumulated on leaves survive and
// stay readable via Grad. Tensors sharing the graph can no longer run
// Backward; doing so returns ReleasedGraphError.
func (t *Tensor) ReleaseGraph() {
	if t.node != nil {
		t.node.release()
		t.node = nil
	}
}

// String renders the tensor's values in nested brackets followed by its
// metadata. Reads the whole tensor back from the device.
func (t *Tensor) String() string {
	data, err := t.Data()
	if err != nil {
		return fmt.Sprintf("Tensor{shape: %v, strides: %v, <unreadable: %v>}", t.shape, t.strides, err)
	}
	var sb strings.Builder
	writeDim(&sb, data, t.shape, t.shape.ComputeStrides(), 0, 0)
	fmt.Fprintf(&sb, "\nshape = %v, rank = %d, strides = %v, n_elements = %d, size = %d bytes\n",
		t.shape, t.Rank(), t.strides, t.NumElements(), t.ByteSize())
	return sb.String()
}

func writeDim(sb *strings.Builder, data []float32, shape Shape, strides []int, dim, offset int) {
	if dim == len(shape) {
		fmt.Fprintf(sb, "%v", data[offset])
		return
	}
	sb.WriteByte('[')
	for i := 0; i < shape[dim]; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeDim(sb, data, shape, strides, dim+1, offset+i*strides[dim])
	}
	sb.WriteByte(']')
}
