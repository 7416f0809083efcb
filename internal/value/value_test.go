package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFalsey(t *testing.T) {
	assert.True(t, Null.IsFalsey())
	assert.True(t, Bool(false).IsFalsey())
	assert.False(t, Bool(true).IsFalsey())
	assert.False(t, Number(0).IsFalsey())
	assert.False(t, FromObject(NewString("")).IsFalsey())
}

func TestEqual(t *testing.T) {
	assert.True(t, Number(1).Equal(Number(1)))
	assert.False(t, Number(1).Equal(Number(2)))
	assert.False(t, Number(1).Equal(Bool(true)))
	assert.True(t, Null.Equal(Null))

	a := FromObject(NewString("hi"))
	b := FromObject(NewString("hi"))
	assert.True(t, a.Equal(b), "strings compare by content, not identity")
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "3", Number(3).String())
	assert.Equal(t, "3.5", Number(3.5).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "null", Null.String())
	assert.Equal(t, "hello", FromObject(NewString("hello")).String())
}

func TestAsString(t *testing.T) {
	v := FromObject(NewString("x"))
	assert.NotNil(t, v.AsString())
	assert.Nil(t, Number(1).AsString())
}

func TestFNV1a(t *testing.T) {
	// regression pin on the well-known FNV-1a offset basis/prime scheme
	assert.Equal(t, uint32(2166136261), FNV1a(""))
	assert.NotEqual(t, FNV1a("a"), FNV1a("b"))
	assert.Equal(t, FNV1a("same"), FNV1a("same"))
}
