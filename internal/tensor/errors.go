package tensor

import "fmt"

// ShapeMismatchError reports shapes that cannot be combined: differing
// ranks, a violated broadcast rule, or a single invalid shape (Invalid
// set, B nil).
type ShapeMismatchError struct {
	A, B    Shape
	Dim     int
	Invalid bool
	Reason  string
}

func (e *ShapeMismatchError) Error() string {
	switch {
	case e.Reason != "" && e.B != nil:
		return fmt.Sprintf("tensor: %s: %v and %v", e.Reason, e.A, e.B)
	case e.Reason != "":
		return fmt.Sprintf("tensor: %s: %v", e.Reason, e.A)
	case e.Invalid:
		return fmt.Sprintf("tensor: invalid shape %v: dimension %d must be > 0", e.A, e.Dim)
	case e.B == nil:
		return fmt.Sprintf("tensor: shape mismatch for %v", e.A)
	}
	return fmt.Sprintf("tensor: incompatible shapes %v and %v at dimension %d", e.A, e.B, e.Dim)
}

// DimensionMismatchError reports matmul operands whose shared dimension
// does not line up: the first operand's trailing extent must equal the
// second's second-to-last.
type DimensionMismatchError struct {
	A, B Shape
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("tensor: matmul dimension mismatch: %v x %v", e.A, e.B)
}

// IndexOutOfRangeError reports an element or axis index outside a tensor's
// bounds.
type IndexOutOfRangeError struct {
	Index int
	Axis  int
	Shape Shape
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("tensor: index %d out of range on axis %d of shape %v", e.Index, e.Axis, e.Shape)
}

// UngradientedTensorError reports a gradient query on a tensor that either
// never requested gradient tracking or has not been visited by a backward
// pass yet.
type UngradientedTensorError struct{}

func (e *UngradientedTensorError) Error() string {
	return "tensor: no gradient recorded; call RequireGrad before the forward pass and Backward after it"
}

// ReleasedGraphError reports a backward pass over a graph whose saved
// operand views were already dropped by ReleaseGraph.
type ReleasedGraphError struct{}

func (e *ReleasedGraphError) Error() string {
	return "tensor: backward graph already released"
}

// AllocationError reports a failed device buffer allocation.
type AllocationError struct {
	Bytes uint64
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("tensor: device allocation of %d bytes failed: %v", e.Bytes, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }
