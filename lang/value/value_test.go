package value_test

import (
	"testing"

	"github.com/emberlang/ember/lang/value"
	"github.com/stretchr/testify/assert"
)

func TestFalsey(t *testing.T) {
	assert.True(t, value.Falsey(value.Nil))
	assert.True(t, value.Falsey(value.Bool(false)))
	assert.False(t, value.Falsey(value.Bool(true)))
	assert.False(t, value.Falsey(value.Number(0)))
	assert.False(t, value.Falsey(value.NewString("")))
}

func TestEqualPrimitives(t *testing.T) {
	assert.True(t, value.Equal(value.Number(1), value.Number(1)))
	assert.False(t, value.Equal(value.Number(1), value.Number(2)))
	assert.True(t, value.Equal(value.Nil, value.Nil))
	assert.False(t, value.Equal(value.Nil, value.Undefined))
	assert.True(t, value.Equal(value.Bool(true), value.Bool(true)))
}

func TestEqualStringsByIdentity(t *testing.T) {
	a := value.NewString("hi")
	b := value.NewString("hi")
	assert.False(t, value.Equal(a, b), "distinct ObjStrings are not equal without interning")
	assert.True(t, value.Equal(a, a))
}

func TestNumberString(t *testing.T) {
	assert.Equal(t, "3.5", value.Number(3.5).String())
	assert.Equal(t, "3", value.Number(3).String())
}

func TestArrayAppendGetSet(t *testing.T) {
	arr := value.NewArray()
	arr.Append(value.Number(1))
	arr.Append(value.Number(2))
	assert.Equal(t, 2, arr.Len())

	v, ok := arr.Get(0)
	assert.True(t, ok)
	assert.Equal(t, value.Number(1), v)

	assert.True(t, arr.Set(1, value.Number(42)))
	v, _ = arr.Get(1)
	assert.Equal(t, value.Number(42), v)

	_, ok = arr.Get(5)
	assert.False(t, ok)
}

func TestArrayString(t *testing.T) {
	arr := value.NewArray()
	arr.Append(value.Number(1))
	arr.Append(value.Bool(true))
	assert.Equal(t, "[1, true]", arr.String())
}

func TestUpvalueCloseRoundTrips(t *testing.T) {
	slot := value.Number(7)
	var v value.Value = slot
	uv := value.NewUpvalue(&v)
	assert.Equal(t, value.Number(7), uv.Get())

	uv.Set(value.Number(9))
	assert.Equal(t, value.Number(9), v, "writes through an open upvalue reach the stack slot")

	uv.Close()
	v = value.Number(100) // mutate the old slot after closing
	assert.Equal(t, value.Number(9), uv.Get(), "closing detaches the upvalue from the old slot")
}

func TestClassInheritCopiesMethodsAndInitializer(t *testing.T) {
	base := value.NewClass(value.NewString("Base"))
	initClosure := &value.ObjClosure{}
	base.SetMethod("init", initClosure)
	cookClosure := &value.ObjClosure{}
	base.SetMethod("cook", cookClosure)

	sub := value.NewClass(value.NewString("Sub"))
	sub.InheritFrom(base)

	assert.Same(t, cookClosure, sub.Methods["cook"])
	assert.Same(t, initClosure, sub.Initializer)
}
