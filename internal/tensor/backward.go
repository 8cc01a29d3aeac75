package tensor

import "github.com/kiln-ml/kiln/internal/device"

// node is one vertex of the backward graph. apply receives the gradient of
// the loss with respect to the node's output and routes it to the node's
// predecessors. The gradient argument is borrowed: implementations that
// keep it must take their own buffer reference. Operands saved for the
// backward pass are retained views, so the graph owns every buffer it
// reads and callers may release forward operands freely.
//
// The graph is walked by plain recursion. A node shared by several
// consumers is applied once per consumer and the leaf accumulators sum the
// contributions, which is what makes diamond-shaped graphs come out right.
//
// release drops the node's retained views and recurses into its
// predecessors. It is idempotent; shared nodes tolerate being released
// along several paths.
type node interface {
	apply(grad *Tensor) error
	release()
}

// retainView wraps t's buffer in a fresh Tensor so the holder's lifetime
// is independent of the caller's.
func retainView(t *Tensor) *Tensor {
	return &Tensor{
		ctx:     t.ctx,
		buf:     t.buf.Retain(),
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
	}
}

// releasePrev tears down a predecessor link. The nil-ing makes release
// idempotent and stops re-walks through shared nodes.
func releasePrev(p *node) {
	if *p != nil {
		(*p).release()
		*p = nil
	}
}

// releaseSaved drops a node's retained operand view.
func releaseSaved(t **Tensor) {
	if *t != nil {
		(*t).Release()
		*t = nil
	}
}

// accumulateNode terminates a backward path at a gradient leaf. Repeated
// arrivals are summed, so parameters used several times in one forward
// pass collect the total gradient.
type accumulateNode struct {
	grad *Tensor
}

func (n *accumulateNode) apply(grad *Tensor) error {
	if n.grad == nil {
		n.grad = retainView(grad)
		return nil
	}
	sum, err := computeBinary("add", n.grad, grad)
	if err != nil {
		return err
	}
	n.grad.Release()
	n.grad = sum
	return nil
}

// The accumulated gradient belongs to the leaf tensor; ZeroGrad and the
// leaf's own lifecycle manage it, so graph teardown leaves it alone.
func (n *accumulateNode) release() {}

// addNode: d(a+b) routes the incoming gradient unchanged to both sides.
type addNode struct {
	prev1, prev2 node
}

func (n *addNode) apply(grad *Tensor) error {
	if n.prev1 != nil {
		if err := n.prev1.apply(grad); err != nil {
			return err
		}
	}
	if n.prev2 != nil {
		return n.prev2.apply(grad)
	}
	return nil
}

func (n *addNode) release() {
	releasePrev(&n.prev1)
	releasePrev(&n.prev2)
}

// subNode: d(a-b) routes grad to a and -grad to b.
type subNode struct {
	prev1, prev2 node
}

func (n *subNode) apply(grad *Tensor) error {
	if n.prev1 != nil {
		if err := n.prev1.apply(grad); err != nil {
			return err
		}
	}
	if n.prev2 != nil {
		ng, err := computeUnary("neg", grad)
		if err != nil {
			return err
		}
		err = n.prev2.apply(ng)
		ng.Release()
		return err
	}
	return nil
}

func (n *subNode) release() {
	releasePrev(&n.prev1)
	releasePrev(&n.prev2)
}

// mulNode saves retained views of both operands: d(a*b)/da = b,
// d(a*b)/db = a.
type mulNode struct {
	a, b         *Tensor
	prev1, prev2 node
}

func (n *mulNode) apply(grad *Tensor) error {
	if n.a == nil || n.b == nil {
		return &ReleasedGraphError{}
	}
	if n.prev1 != nil {
		ga, err := computeBinary("mul", grad, n.b)
		if err != nil {
			return err
		}
		err = n.prev1.apply(ga)
		ga.Release()
		if err != nil {
			return err
		}
	}
	if n.prev2 != nil {
		gb, err := computeBinary("mul", grad, n.a)
		if err != nil {
			return err
		}
		err = n.prev2.apply(gb)
		gb.Release()
		return err
	}
	return nil
}

func (n *mulNode) release() {
	releaseSaved(&n.a)
	releaseSaved(&n.b)
	releasePrev(&n.prev1)
	releasePrev(&n.prev2)
}

// negNode: d(-a) negates the incoming gradient.
type negNode struct {
	prev node
}

func (n *negNode) apply(grad *Tensor) error {
	if n.prev == nil {
		return nil
	}
	ng, err := computeUnary("neg", grad)
	if err != nil {
		return err
	}
	err = n.prev.apply(ng)
	ng.Release()
	return err
}

func (n *negNode) release() {
	releasePrev(&n.prev)
}

// matmulNode saves retained views of both operands. With C = A·B:
// dA = G·Bᵀ and dB = Aᵀ·G, computed as stride-swapped views so no
// transpose is materialized.
type matmulNode struct {
	a, b         *Tensor
	prev1, prev2 node
}

func (n *matmulNode) apply(grad *Tensor) error {
	if n.a == nil || n.b == nil {
		return &ReleasedGraphError{}
	}
	if n.prev1 != nil {
		bt := transposeLast(n.b)
		ga, err := computeMatMul(grad, bt)
		bt.Release()
		if err != nil {
			return err
		}
		err = n.prev1.apply(ga)
		ga.Release()
		if err != nil {
			return err
		}
	}
	if n.prev2 != nil {
		at := transposeLast(n.a)
		gb, err := computeMatMul(at, grad)
		at.Release()
		if err != nil {
			return err
		}
		err = n.prev2.apply(gb)
		gb.Release()
		return err
	}
	return nil
}

func (n *matmulNode) release() {
	releaseSaved(&n.a)
	releaseSaved(&n.b)
	releasePrev(&n.prev1)
	releasePrev(&n.prev2)
}

// reluNode saves a retained view of the forward input; the gradient is
// masked by where the input was positive.
type reluNode struct {
	input *Tensor
	prev  node
}

func (n *reluNode) apply(grad *Tensor) error {
	if n.input == nil {
		return &ReleasedGraphError{}
	}
	mask, err := computeUnary("reluGrad", n.input)
	if err != nil {
		return err
	}
	gi, err := computeBinary("mul", grad, mask)
	mask.Release()
	if err != nil {
		return err
	}
	err = n.prev.apply(gi)
	gi.Release()
	return err
}

func (n *reluNode) release() {
	releaseSaved(&n.input)
	releasePrev(&n.prev)
}

// sumNode broadcasts the scalar gradient back over the input shape: every
// input element contributed with weight 1.
type sumNode struct {
	ctx     *device.Context
	inShape Shape
	prev    node
}

func (n *sumNode) apply(grad *Tensor) error {
	if n.prev == nil {
		return nil
	}
	zero, err := Zeros(n.ctx, n.inShape)
	if err != nil {
		return err
	}
	gi, err := computeBinary("add", zero, grad)
	zero.Release()
	if err != nil {
		return err
	}
	err = n.prev.apply(gi)
	gi.Release()
	return err
}

func (n *sumNode) release() {
	releasePrev(&n.prev)
}
