package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := New()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(ctx.Release)
	return ctx
}

func TestContext_Name(t *testing.T) {
	ctx := testContext(t)
	assert.NotEmpty(t, ctx.Name())
}

func TestListAdapters(t *testing.T) {
	adapters, err := ListAdapters()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	assert.NotEmpty(t, adapters)
}

func TestBuffer_UploadReadback(t *testing.T) {
	ctx := testContext(t)

	data := []float32{1.5, -2, 0, 42}
	buf, err := ctx.NewBufferFromFloat32(data)
	require.NoError(t, err)
	defer buf.Release()

	assert.Equal(t, uint64(16), buf.Size())

	got, err := ctx.ReadFloat32(buf)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	v, err := ctx.ReadFloat32At(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, float32(42), v)
}

func TestBuffer_RefCounting(t *testing.T) {
	ctx := testContext(t)

	buf, err := ctx.NewBufferFromFloat32([]float32{1, 2})
	require.NoError(t, err)

	buf.Retain()
	buf.Release()

	// Still alive after the first release; the data must read back.
	got, err := ctx.ReadFloat32(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)

	buf.Release()
	// Releasing a dead buffer is a no-op.
	buf.Release()
}

func TestBufferPool_Reuse(t *testing.T) {
	ctx := testContext(t)

	buf, err := ctx.NewBuffer(1024)
	require.NoError(t, err)
	buf.Release()

	// The freed buffer goes back to the pool and the next acquisition of
	// the same size must hit it.
	before := ctx.PoolStats()
	buf2, err := ctx.NewBuffer(1024)
	require.NoError(t, err)
	defer buf2.Release()
	after := ctx.PoolStats()

	assert.Equal(t, before.Hits+1, after.Hits)
}

func TestBufferPool_KeepsCapacityAcrossSmallerReuse(t *testing.T) {
	ctx := testContext(t)

	big, err := ctx.NewBuffer(8192)
	require.NoError(t, err)
	big.Release()

	// Reusing the pooled buffer for a smaller request must not shrink its
	// pooled size, or it could never satisfy a full-size request again.
	small, err := ctx.NewBuffer(6000)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), small.Size())
	assert.Equal(t, uint64(8192), small.capacity)
	small.Release()

	before := ctx.PoolStats()
	again, err := ctx.NewBuffer(8192)
	require.NoError(t, err)
	defer again.Release()
	after := ctx.PoolStats()

	assert.Equal(t, before.Hits+1, after.Hits)
	assert.Equal(t, before.TotalAllocated, after.TotalAllocated)
}

func TestKernel_BinaryBroadcast(t *testing.T) {
	ctx := testContext(t)

	a, err := ctx.NewBufferFromFloat32([]float32{1, 2, 3})
	require.NoError(t, err)
	defer a.Release()
	b, err := ctx.NewBufferFromFloat32([]float32{10, 20, 30})
	require.NoError(t, err)
	defer b.Release()

	out, err := ctx.BinaryBroadcast("add", a, b, []int{1}, []int{1}, []int{1}, 3)
	require.NoError(t, err)
	defer out.Release()

	got, err := ctx.ReadFloat32(out)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 33}, got)
}

func TestKernel_UnknownName(t *testing.T) {
	ctx := testContext(t)

	a, err := ctx.NewBufferFromFloat32([]float32{1})
	require.NoError(t, err)
	defer a.Release()

	_, err = ctx.BinaryBroadcast("xor", a, a, []int{1}, []int{1}, []int{1}, 1)
	require.Error(t, err)
	_, err = ctx.Unary("tanh", a, 1)
	require.Error(t, err)
}

func TestKernel_MatMulIdentity(t *testing.T) {
	ctx := testContext(t)

	a, err := ctx.NewBufferFromFloat32([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	defer a.Release()
	id, err := ctx.NewBufferFromFloat32([]float32{1, 0, 0, 1})
	require.NoError(t, err)
	defer id.Release()

	out, err := ctx.MatMul(a, id, MatMulArgs{
		Batch: 1, Height: 2, Width: 2, Shared: 2,
		ARowStride: 2, AColStride: 1,
		BRowStride: 2, BColStride: 1,
	})
	require.NoError(t, err)
	defer out.Release()

	got, err := ctx.ReadFloat32(out)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestKernel_Sum(t *testing.T) {
	ctx := testContext(t)

	in, err := ctx.NewBufferFromFloat32([]float32{1, 2, 3, 4, 5})
	require.NoError(t, err)
	defer in.Release()

	out, err := ctx.Sum(in, 5)
	require.NoError(t, err)
	defer out.Release()

	got, err := ctx.ReadFloat32(out)
	require.NoError(t, err)
	assert.Equal(t, []float32{15}, got)
}
