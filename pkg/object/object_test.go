package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/value"
)

func TestHashStringIsDeterministic(t *testing.T) {
	assert.Equal(t, object.HashString("hello"), object.HashString("hello"))
	assert.NotEqual(t, object.HashString("hello"), object.HashString("world"))
}

func TestNewStringCachesItsHash(t *testing.T) {
	s := object.NewString("abc")
	assert.Equal(t, object.HashString("abc"), s.Hash)
	assert.Equal(t, "abc", s.Chars)
}

func TestHeaderMarkedRoundTrip(t *testing.T) {
	s := object.NewString("x")
	assert.False(t, object.Marked(s))
	object.SetMarked(s, true)
	assert.True(t, object.Marked(s))
}

func TestHeaderNextLinksIntrusiveList(t *testing.T) {
	a := object.NewString("a")
	b := object.NewString("b")
	object.SetNext(a, b)
	assert.Same(t, b, object.Next(a))
}

func TestUpvalueIsOpenUntilClosed(t *testing.T) {
	slot := value.Number(1)
	uv := &object.Upvalue{Location: &slot}
	assert.True(t, uv.IsOpen())

	uv.Close()
	assert.False(t, uv.IsOpen())
	assert.Equal(t, value.Number(1), uv.Closed)
}

func TestNewClassStartsWithNoMethodsAndNilInit(t *testing.T) {
	c := object.NewClass(object.NewString("Pair"))
	assert.Equal(t, "Pair", c.Name.Chars)
	assert.Empty(t, c.Methods)
	assert.Nil(t, c.Init)
}

func TestNewInstanceReferencesItsClass(t *testing.T) {
	c := object.NewClass(object.NewString("Pair"))
	i := object.NewInstance(c)
	assert.Same(t, c, i.Class)
	assert.Equal(t, "<Pair instance>", i.String())
}

func TestToDisplayStringMatchesEachVariant(t *testing.T) {
	assert.Equal(t, "nil", object.ToDisplayString(value.Nil))
	assert.Equal(t, "true", object.ToDisplayString(value.Bool(true)))
	assert.Equal(t, "false", object.ToDisplayString(value.Bool(false)))
	assert.Equal(t, "1.5", object.ToDisplayString(value.Number(1.5)))
	assert.Equal(t, "3", object.ToDisplayString(value.Number(3)))
	assert.Equal(t, "hi", object.ToDisplayString(value.FromObj(object.NewString("hi"))))
}

func TestArrayDisplayStringJoinsElementsWithBrackets(t *testing.T) {
	arr := object.NewArray([]value.Value{value.Number(1), value.Number(2)})
	assert.Equal(t, "[1, 2]", arr.String())
}
