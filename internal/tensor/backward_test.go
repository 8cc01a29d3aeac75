package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackward_Mul(t *testing.T) {
	ctx := testContext(t)

	a, err := Full(ctx, 2, Shape{1})
	require.NoError(t, err)
	defer a.Release()
	b, err := Full(ctx, 3, Shape{1})
	require.NoError(t, err)
	defer b.Release()
	a.RequireGrad()
	b.RequireGrad()

	y, err := a.Mul(b)
	require.NoError(t, err)
	defer y.Release()

	require.NoError(t, y.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	v, err := ga.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)

	gb, err := b.Grad()
	require.NoError(t, err)
	v, err = gb.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(2), v)
}

func TestBackward_AddSub(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{1, 2}, Shape{2})
	require.NoError(t, err)
	defer a.Release()
	b, err := FromSlice(ctx, []float32{3, 4}, Shape{2})
	require.NoError(t, err)
	defer b.Release()
	a.RequireGrad()
	b.RequireGrad()

	d, err := a.Sub(b)
	require.NoError(t, err)
	defer d.Release()

	require.NoError(t, d.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, got)

	gb, err := b.Grad()
	require.NoError(t, err)
	got, err = gb.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -1}, got)
}

func TestBackward_Neg(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{1, 2}, Shape{2})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	n, err := a.Neg()
	require.NoError(t, err)
	defer n.Release()

	require.NoError(t, n.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -1}, got)
}

func TestBackward_ReLU(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{-1, 0, 2}, Shape{3})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	r, err := a.ReLU()
	require.NoError(t, err)
	defer r.Release()

	require.NoError(t, r.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, got)
}

func TestBackward_Sum(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	s, err := a.Sum()
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.Backward())

	// d(sum)/dx is one for every input element.
	ga, err := a.Grad()
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, ga.Shape())
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, got)
}

func TestBackward_MatMul(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	defer a.Release()
	b, err := FromSlice(ctx, []float32{1, 2, 3, 4, 5, 6}, Shape{3, 2})
	require.NoError(t, err)
	defer b.Release()
	a.RequireGrad()
	b.RequireGrad()

	c, err := a.MatMul(b)
	require.NoError(t, err)
	defer c.Release()

	require.NoError(t, c.Backward())

	// With G all ones: dA = G·Bᵀ, each row of dA is the column sums of Bᵀ.
	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 7, 11, 3, 7, 11}, got)

	// dB = Aᵀ·G, each row of dB is the column sums of A.
	gb, err := b.Grad()
	require.NoError(t, err)
	got, err = gb.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5, 7, 7, 9, 9}, got)
}

func TestBackward_ChainThroughLoss(t *testing.T) {
	ctx := testContext(t)

	// loss = sum((a*b)²-ish chain): a*b → relu → sum
	a, err := FromSlice(ctx, []float32{-1, 2}, Shape{2})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	b, err := FromSlice(ctx, []float32{3, 4}, Shape{2})
	require.NoError(t, err)
	defer b.Release()

	p, err := a.Mul(b)
	require.NoError(t, err)
	defer p.Release()

	r, err := p.ReLU()
	require.NoError(t, err)
	defer r.Release()

	loss, err := r.Sum()
	require.NoError(t, err)
	defer loss.Release()

	require.NoError(t, loss.Backward())

	// p = (-3, 8); relu passes only the second lane, so da = (0, b₁).
	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 4}, got)
}

func TestBackward_DiamondAccumulates(t *testing.T) {
	ctx := testContext(t)

	// y = a*a: both mul inputs are the same leaf, so its accumulator
	// receives two contributions that must sum to 2a.
	a, err := Full(ctx, 3, Shape{1})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	y, err := a.Mul(a)
	require.NoError(t, err)
	defer y.Release()

	require.NoError(t, y.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	v, err := ga.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(6), v)
}

func TestBackward_RepeatedPassesSum(t *testing.T) {
	ctx := testContext(t)

	a, err := Full(ctx, 2, Shape{1})
	require.NoError(t, err)
	defer a.Release()
	b, err := Full(ctx, 3, Shape{1})
	require.NoError(t, err)
	defer b.Release()
	a.RequireGrad()

	y, err := a.Mul(b)
	require.NoError(t, err)
	defer y.Release()

	require.NoError(t, y.Backward())
	require.NoError(t, y.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	v, err := ga.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(6), v)

	a.ZeroGrad()
	_, err = a.Grad()
	var ung *UngradientedTensorError
	require.ErrorAs(t, err, &ung)

	require.NoError(t, y.Backward())
	ga, err = a.Grad()
	require.NoError(t, err)
	v, err = ga.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)
}

func TestBackward_OperandReleasedAfterForward(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{2, 5}, Shape{2})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	b, err := FromSlice(ctx, []float32{3, 4}, Shape{2})
	require.NoError(t, err)

	y, err := a.Mul(b)
	require.NoError(t, err)
	defer y.Release()

	// The node retained its own view of b, so dropping the forward handle
	// and allocating a same-sized tensor must not disturb the saved
	// operand the backward pass reads.
	b.Release()
	clobber, err := Full(ctx, -9, Shape{2})
	require.NoError(t, err)
	defer clobber.Release()

	require.NoError(t, y.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, got)
}

func TestBackward_MatMulOperandReleasedAfterForward(t *testing.T) {
	ctx := testContext(t)

	a, err := FromSlice(ctx, []float32{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	b, err := FromSlice(ctx, []float32{1, 0, 0, 1}, Shape{2, 2})
	require.NoError(t, err)

	c, err := a.MatMul(b)
	require.NoError(t, err)
	defer c.Release()

	b.Release()

	require.NoError(t, c.Backward())

	// dA = G·Bᵀ with B the identity: all ones.
	ga, err := a.Grad()
	require.NoError(t, err)
	got, err := ga.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, got)
}

func TestReleaseGraph(t *testing.T) {
	ctx := testContext(t)

	a, err := Full(ctx, 2, Shape{1})
	require.NoError(t, err)
	defer a.Release()
	a.RequireGrad()

	b, err := Full(ctx, 3, Shape{1})
	require.NoError(t, err)
	defer b.Release()

	y, err := a.Mul(b)
	require.NoError(t, err)
	defer y.Release()

	require.NoError(t, y.Backward())

	// A view keeps pointing at the graph across teardown.
	view, err := y.Transpose(0, 0)
	require.NoError(t, err)
	defer view.Release()

	y.ReleaseGraph()
	y.ReleaseGraph()

	// The accumulated gradient survives teardown.
	ga, err := a.Grad()
	require.NoError(t, err)
	v, err := ga.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)

	var rel *ReleasedGraphError
	require.ErrorAs(t, view.Backward(), &rel)
}

func TestBackward_Errors(t *testing.T) {
	ctx := testContext(t)

	// No tracking anywhere: Backward has no graph to walk.
	a, err := Ones(ctx, Shape{2})
	require.NoError(t, err)
	defer a.Release()

	var ung *UngradientedTensorError
	require.ErrorAs(t, a.Backward(), &ung)

	_, err = a.Grad()
	require.ErrorAs(t, err, &ung)

	// Tracked leaf, but unvisited by any backward pass.
	b, err := Ones(ctx, Shape{2})
	require.NoError(t, err)
	defer b.Release()
	b.RequireGrad()
	_, err = b.Grad()
	require.ErrorAs(t, err, &ung)
}

func TestBackward_DivDoesNotTrack(t *testing.T) {
	ctx := testContext(t)

	a, err := Full(ctx, 6, Shape{1})
	require.NoError(t, err)
	defer a.Release()
	b, err := Full(ctx, 2, Shape{1})
	require.NoError(t, err)
	defer b.Release()
	a.RequireGrad()

	q, err := a.Div(b)
	require.NoError(t, err)
	defer q.Release()

	v, err := q.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)

	var ung *UngradientedTensorError
	require.ErrorAs(t, q.Backward(), &ung)
}
