package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/glox/pkg/value"
)

func TestNilIsFalseyEverythingElseDefaultTruthy(t *testing.T) {
	assert.True(t, value.Nil.IsFalsey())
	assert.True(t, value.Bool(false).IsFalsey())
	assert.False(t, value.Bool(true).IsFalsey())
	assert.False(t, value.Number(0).IsFalsey())
	assert.False(t, value.FromObj("").IsFalsey())
}

func TestEqualRequiresSameKind(t *testing.T) {
	assert.False(t, value.Equal(value.Number(0), value.Bool(false)))
	assert.False(t, value.Equal(value.Nil, value.Bool(false)))
}

func TestEqualNumberNaNNeverEqualsItself(t *testing.T) {
	nan := value.Number(math.NaN())
	assert.False(t, value.Equal(nan, nan))
}

func TestEqualObjComparesByIdentityNotContent(t *testing.T) {
	a := value.FromObj(&struct{ x int }{1})
	b := value.FromObj(&struct{ x int }{1})
	assert.False(t, value.Equal(a, b), "two distinct objects with equal contents must not compare equal")
	assert.True(t, value.Equal(a, a))
}

func TestAccessorsRoundTripEachKind(t *testing.T) {
	assert.Equal(t, 3.5, value.Number(3.5).AsNumber())
	assert.Equal(t, true, value.Bool(true).AsBool())
	assert.Equal(t, "s", value.FromObj("s").AsObj())
}
