package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIntern covers P9: equal-content literals are the same reference.
func TestIntern(t *testing.T) {
	assert.Same(t, IntLiteral(7), IntLiteral(7))
	assert.Same(t, BoolLiteral(true), BoolLiteral(true))
	assert.Same(t, BoolLiteral(false), BoolLiteral(false))
	assert.Same(t, NullLiteral(), NullLiteral())
	assert.Same(t, ZERO, IntLiteral(0))
	assert.Same(t, ONE, IntLiteral(1))
	assert.Same(t, NEG_ONE, IntLiteral(-1))
	assert.Same(t, TRUE, BoolLiteral(true))
	assert.Same(t, FALSE, BoolLiteral(false))
}

func TestInternString(t *testing.T) {
	a := StringLiteral("hello")
	b := StringLiteral("hello")
	assert.Same(t, a, b)
	assert.Same(t, a.StrGlob, b.StrGlob)

	c := StringLiteral("world")
	assert.NotSame(t, a, c)
	assert.NotEqual(t, a.StrGlob.Name, c.StrGlob.Name)
}

func TestUndefinedIsNeverInterned(t *testing.T) {
	a := Undefined(I32)
	b := Undefined(I32)
	assert.NotSame(t, a, b)
}

func TestValueDataFormatting(t *testing.T) {
	assert.Equal(t, "i32 42", IntLiteral(42).Data())
	assert.Equal(t, "i1 true", TRUE.Data())
	assert.Equal(t, "ptr null", NULL.Data())
	assert.Equal(t, "undef i32", Undefined(I32).Data())
}
