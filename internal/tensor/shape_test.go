package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 6, Shape{2, 3}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 5, Shape{5}.NumElements())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{3, 1}, Shape{2, 3}.ComputeStrides())
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Equal(t, []int{1}, Shape{7}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, Shape{2, 3}.Validate())

	err := Shape{2, 0}.Validate()
	require.Error(t, err)
	var sme *ShapeMismatchError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, 1, sme.Dim)
}

func TestShape_Validate_RankCap(t *testing.T) {
	err := Shape{1, 1, 1, 1, 1, 1, 1}.Validate()
	var sme *ShapeMismatchError
	require.ErrorAs(t, err, &sme)

	assert.NoError(t, Shape{1, 1, 1, 1, 1, 1}.Validate())
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{2, 3}.Equal(Shape{2, 3, 1}))
}

func TestBroadcastPlan_EqualShapes(t *testing.T) {
	a := Shape{2, 3}
	out, effA, effB, err := broadcastPlan(a, a.ComputeStrides(), a, a.ComputeStrides())
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, out)
	assert.Equal(t, []int{3, 1}, effA)
	assert.Equal(t, []int{3, 1}, effB)
}

func TestBroadcastPlan_WidensSingleton(t *testing.T) {
	a := Shape{3, 1}
	b := Shape{3, 4}
	out, effA, effB, err := broadcastPlan(a, a.ComputeStrides(), b, b.ComputeStrides())
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 4}, out)
	// The widened dimension reads through stride 0.
	assert.Equal(t, []int{1, 0}, effA)
	assert.Equal(t, []int{4, 1}, effB)
}

func TestBroadcastPlan_BothSidesWiden(t *testing.T) {
	a := Shape{3, 1}
	b := Shape{1, 4}
	out, effA, effB, err := broadcastPlan(a, a.ComputeStrides(), b, b.ComputeStrides())
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 4}, out)
	assert.Equal(t, []int{1, 0}, effA)
	assert.Equal(t, []int{0, 1}, effB)
}

func TestBroadcastPlan_RankMismatch(t *testing.T) {
	a := Shape{3}
	b := Shape{3, 4}
	_, _, _, err := broadcastPlan(a, a.ComputeStrides(), b, b.ComputeStrides())
	var sme *ShapeMismatchError
	require.ErrorAs(t, err, &sme)
}

func TestBroadcastPlan_IncompatibleExtents(t *testing.T) {
	a := Shape{3, 2}
	b := Shape{3, 4}
	_, _, _, err := broadcastPlan(a, a.ComputeStrides(), b, b.ComputeStrides())
	var sme *ShapeMismatchError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, 1, sme.Dim)
}
