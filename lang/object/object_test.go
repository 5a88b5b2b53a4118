package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/object"
)

func TestAddConstantDeduplicates(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	i1 := fn.AddConstant(object.String("hello"))
	i2 := fn.AddConstant(object.String("hello"))
	i3 := fn.AddConstant(object.String("world"))

	assert.Equal(t, i1, i2)
	assert.NotEqual(t, i1, i3)
	assert.Len(t, fn.Constants, 2)
}

func TestReservedIndexFor(t *testing.T) {
	cases := []struct {
		v    object.Value
		want int
	}{
		{object.Null{}, object.ReservedNull},
		{object.Undefined{}, object.ReservedUndefined},
		{object.Bool(true), object.ReservedTrue},
		{object.Bool(false), object.ReservedFalse},
		{object.FuncSentinel{}, object.ReservedFunc},
		{object.ArgsSentinel{}, object.ReservedArguments},
	}
	for _, c := range cases {
		got, ok := object.ReservedIndexFor(c.v)
		require.True(t, ok, "%v", c.v)
		assert.Equal(t, c.want, got)
	}

	_, ok := object.ReservedIndexFor(object.Int(1))
	assert.False(t, ok)
}

func TestReservedIndicesExceedRealPool(t *testing.T) {
	// the reserved sentinel indices sit above every real pool index so the
	// two index spaces never collide in an 18-bit LOADK operand
	assert.Greater(t, object.ReservedNull, object.MaxConstPoolIndex)
	assert.Less(t, object.ReservedFunc, 1<<18)
}

func TestClassPairAndLookup(t *testing.T) {
	animal, animalMeta := object.NewClassPair("Animal", nil)
	require.NotNil(t, animal.Meta)
	assert.Same(t, animalMeta, animal.Meta)
	assert.Nil(t, animalMeta.Meta)

	dog, dogMeta := object.NewClassPair("Dog", animal)
	assert.Same(t, animal, dog.Super)
	assert.Same(t, animalMeta, dogMeta.Super, "the metaclass chains to the super's metaclass")

	animal.Bind("speak", object.String("..."))
	v, ok := dog.Lookup("speak")
	require.True(t, ok, "lookup walks the superclass chain")
	assert.Equal(t, object.Value(object.String("...")), v)

	_, ok = dog.Lookup("fly")
	assert.False(t, ok)
}

func TestValueStrings(t *testing.T) {
	assert.Equal(t, "null", object.Null{}.String())
	assert.Equal(t, "undefined", object.Undefined{}.String())
	assert.Equal(t, "42", object.Int(42).String())
	assert.Equal(t, "1.5", object.Float(1.5).String())
	assert.Equal(t, "true", object.Bool(true).String())
	assert.Equal(t, "int", object.Int(0).Type())
}
