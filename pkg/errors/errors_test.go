package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeConversion, "bad element")
	outer := Wrap(inner, ErrorTypeData, "row failed")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeData))
	assert.True(t, stderrors.Is(outer, inner))
	assert.Equal(t, "data: row failed: conversion: bad element", outer.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeData, "ignored"))
}

func TestRowKey(t *testing.T) {
	_, ok := RowKey(stderrors.New("plain"))
	assert.False(t, ok)

	_, ok = RowKey(New(ErrorTypeData, "no key"))
	assert.False(t, ok)

	key, ok := RowKey(New(ErrorTypeMissingValue, "x").WithDetail(DetailRowKey, "Row3"))
	assert.True(t, ok)
	assert.Equal(t, "Row3", key)
}

func TestDetail(t *testing.T) {
	e := New(ErrorTypeUnsupportedType, "x")
	_, ok := e.Detail(DetailSourceType)
	assert.False(t, ok)

	e.WithDetail(DetailSourceType, "string")
	v, ok := e.Detail(DetailSourceType)
	assert.True(t, ok)
	assert.Equal(t, "string", v)
}

func TestAnnotateCopies(t *testing.T) {
	shared := New(ErrorTypeUnsupportedType, "no converter").WithDetail(DetailSourceType, "string")

	a := Annotate(shared, DetailRowKey, "Row1")
	b := Annotate(shared, DetailRowKey, "Row2")

	_, ok := shared.Detail(DetailRowKey)
	assert.False(t, ok)
	ka, _ := RowKey(a)
	kb, _ := RowKey(b)
	assert.Equal(t, "Row1", ka)
	assert.Equal(t, "Row2", kb)

	src, _ := a.Detail(DetailSourceType)
	assert.Equal(t, "string", src)
	assert.True(t, IsType(a, ErrorTypeUnsupportedType))

	plain := Annotate(stderrors.New("boom"), DetailRowKey, "Row3")
	assert.True(t, IsType(plain, ErrorTypeInternal))
	assert.Nil(t, Annotate(nil, DetailRowKey, "x"))
}
