package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/tensor"
)

func testContext(t *testing.T) *device.Context {
	t.Helper()
	ctx, err := device.New()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(ctx.Release)
	return ctx
}

func TestParameter(t *testing.T) {
	ctx := testContext(t)

	w, err := tensor.Ones(ctx, tensor.Shape{2, 2})
	require.NoError(t, err)
	defer w.Release()

	p := NewParameter("weight", w)
	assert.Equal(t, "weight", p.Name())
	assert.Same(t, w, p.Tensor())

	// Leaf with no backward pass yet.
	_, err = p.Grad()
	var ung *tensor.UngradientedTensorError
	require.ErrorAs(t, err, &ung)

	s, err := w.Sum()
	require.NoError(t, err)
	defer s.Release()
	require.NoError(t, s.Backward())

	grad, err := p.Grad()
	require.NoError(t, err)
	got, err := grad.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, got)

	p.ZeroGrad()
	_, err = p.Grad()
	require.ErrorAs(t, err, &ung)
}

func TestLinear_ForwardShape(t *testing.T) {
	ctx := testContext(t)

	rng := rand.New(rand.NewSource(42))
	layer, err := NewLinear(ctx, rng, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, layer.InFeatures())
	assert.Equal(t, 2, layer.OutFeatures())
	assert.Len(t, layer.Parameters(), 2)

	x, err := tensor.Ones(ctx, tensor.Shape{4, 3})
	require.NoError(t, err)
	defer x.Release()

	y, err := layer.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	assert.Equal(t, tensor.Shape{4, 2}, y.Shape())
}

func TestLinear_KnownWeights(t *testing.T) {
	ctx := testContext(t)

	rng := rand.New(rand.NewSource(1))
	layer, err := NewLinear(ctx, rng, 2, 2)
	require.NoError(t, err)

	// Overwrite the random init with fixed values: W = identity, b = (1, 2).
	w, err := tensor.FromSlice(ctx, []float32{1, 0, 0, 1}, tensor.Shape{2, 2})
	require.NoError(t, err)
	require.NoError(t, layer.Parameters()[0].Tensor().Assign(w))
	w.Release()
	b, err := tensor.FromSlice(ctx, []float32{1, 2}, tensor.Shape{1, 2})
	require.NoError(t, err)
	require.NoError(t, layer.Parameters()[1].Tensor().Assign(b))
	b.Release()

	x, err := tensor.FromSlice(ctx, []float32{3, 4, 5, 6}, tensor.Shape{2, 2})
	require.NoError(t, err)
	defer x.Release()

	y, err := layer.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	got, err := y.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 6, 6, 8}, got)
}

func TestMSELoss(t *testing.T) {
	ctx := testContext(t)

	pred, err := tensor.FromSlice(ctx, []float32{1, 2, 3}, tensor.Shape{1, 3})
	require.NoError(t, err)
	defer pred.Release()
	target, err := tensor.FromSlice(ctx, []float32{2, 2, 5}, tensor.Shape{1, 3})
	require.NoError(t, err)
	defer target.Release()

	loss, err := MSELoss(pred, target)
	require.NoError(t, err)
	defer loss.Release()

	v, err := loss.Item()
	require.NoError(t, err)
	assert.Equal(t, float32(5), v) // 1 + 0 + 4
}

func TestMSELoss_GradientFlows(t *testing.T) {
	ctx := testContext(t)

	pred, err := tensor.FromSlice(ctx, []float32{3, 1}, tensor.Shape{1, 2})
	require.NoError(t, err)
	defer pred.Release()
	pred.RequireGrad()

	target, err := tensor.FromSlice(ctx, []float32{1, 1}, tensor.Shape{1, 2})
	require.NoError(t, err)
	defer target.Release()

	loss, err := MSELoss(pred, target)
	require.NoError(t, err)
	defer loss.Release()

	require.NoError(t, loss.Backward())

	// d/dp (p-t)² = 2(p-t) = (4, 0)
	grad, err := pred.Grad()
	require.NoError(t, err)
	got, err := grad.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0}, got)
}
