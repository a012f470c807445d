package datatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want DataType
	}{
		{"double", Double},
		{" Int ", Int},
		{"collection<int>", CollectionOf(Int)},
		{"collection<collection<double>>", CollectionOf(Double)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "collection<int", "two words", "collection<>"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), bad)
	}
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "double", Double.Signature())
	assert.Equal(t, "collection<string>", CollectionOf(String).Signature())
	assert.True(t, CollectionOf(String).IsCollection())
	assert.Equal(t, String, CollectionOf(String).Element())
	assert.True(t, DataType{}.IsZero())
}

func TestBuiltinCompatibility(t *testing.T) {
	h := Builtin()

	tests := []struct {
		value, declared DataType
		want            bool
	}{
		{Int, Int, true},
		{Int, Long, true},
		{Int, Double, true},
		{Boolean, Double, true},
		{Double, Int, false},
		{String, Double, false},
		{String, Any, true},
		{CollectionOf(Int), CollectionOf(Double), true},
		{CollectionOf(String), CollectionOf(Double), false},
		{CollectionOf(Int), Int, false},
		{Int, CollectionOf(Int), false},
		{CollectionOf(Int), Any, true},
	}
	for _, tt := range tests {
		t.Run(tt.value.Signature()+"->"+tt.declared.Signature(), func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsCompatible(tt.value, tt.declared))
		})
	}
}

func TestDeclareIgnoresDuplicatesAndSelf(t *testing.T) {
	h := NewHierarchy().Declare("a", "b", "b", "a")
	assert.Equal(t, []string{"b"}, h.Parents("a"))
}

func TestHierarchyHandlesCycles(t *testing.T) {
	h := NewHierarchy().Declare("a", "b").Declare("b", "a")
	assert.False(t, h.IsCompatible(Of("a"), Of("c")))
	assert.True(t, h.IsCompatible(Of("b"), Of("a")))
}
