package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

func constant(kind string, src, dst datatype.DataType, priority int, out interface{}) *FuncConverter {
	return NewFuncConverter(kind, src, dst, priority, func(interface{}) (interface{}, error) {
		return out, nil
	})
}

func TestRegisterNil(t *testing.T) {
	reg := NewRegistry(nil, zaptest.NewLogger(t))
	err := reg.Register(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, 0, reg.Len())
}

func TestRegisterTypedNil(t *testing.T) {
	reg := NewRegistry(nil, zaptest.NewLogger(t))
	var c *FuncConverter

	err := reg.Register(c)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, 0, reg.Len())

	ext := StaticExtension("typed-nil", c, constant("ok", datatype.Int, datatype.Double, 0, 1.0))
	assert.Equal(t, 1, Init(zaptest.NewLogger(t), ext).Len())
}

func TestResolvePriority(t *testing.T) {
	low := constant("low", datatype.Double, datatype.Double, 1, 1.0)
	high := constant("high", datatype.Double, datatype.Double, 5, 2.0)

	tests := []struct {
		name  string
		order []TypeConverter
	}{
		{"low first", []TypeConverter{low, high}},
		{"high first", []TypeConverter{high, low}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(nil, zaptest.NewLogger(t)).MustRegister(tt.order...)
			for i := 0; i < 3; i++ {
				got, ok := reg.Resolve(datatype.Double, datatype.Double)
				require.True(t, ok)
				assert.Equal(t, high.Identifier(), got.Identifier())
			}
		})
	}
}

func TestResolveTieGoesToFirstRegistered(t *testing.T) {
	a := constant("a", datatype.Double, datatype.Double, 3, 1.0)
	b := constant("b", datatype.Double, datatype.Double, 3, 2.0)

	reg := NewRegistry(nil, zaptest.NewLogger(t)).MustRegister(a, b)
	got, ok := reg.Resolve(datatype.Double, datatype.Double)
	require.True(t, ok)
	assert.Equal(t, a.Identifier(), got.Identifier())

	reg = NewRegistry(nil, zaptest.NewLogger(t)).MustRegister(b, a)
	got, ok = reg.Resolve(datatype.Double, datatype.Double)
	require.True(t, ok)
	assert.Equal(t, b.Identifier(), got.Identifier())
}

func TestResolveUsesCompatibility(t *testing.T) {
	reg := Init(zaptest.NewLogger(t), Builtin())

	tests := []struct {
		source datatype.DataType
		dest   datatype.DataType
		want   string
	}{
		{datatype.Int, datatype.Double, Identifier(KindNumeric, datatype.Int, datatype.Double)},
		{datatype.Long, datatype.Double, Identifier(KindNumeric, datatype.Long, datatype.Double)},
		{datatype.Boolean, datatype.Double, Identifier(KindNumeric, datatype.Boolean, datatype.Double)},
		{datatype.Double, datatype.Double, Identifier(KindNumeric, datatype.Double, datatype.Double)},
		{datatype.String, datatype.String, Identifier(KindString, datatype.String, datatype.String)},
		{datatype.Int, datatype.String, Identifier(KindString, datatype.Any, datatype.String)},
		{datatype.BitVector, datatype.DoubleVector, Identifier(KindBitVector, datatype.BitVector, datatype.DoubleVector)},
	}
	for _, tt := range tests {
		t.Run(tt.source.String()+"->"+tt.dest.String(), func(t *testing.T) {
			got, ok := reg.Resolve(tt.source, tt.dest)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Identifier())
		})
	}

	_, ok := reg.Resolve(datatype.String, datatype.Double)
	assert.False(t, ok)
	_, ok = reg.Resolve(datatype.Double, datatype.Of("tensor"))
	assert.False(t, ok)
}

func TestDestinationMustMatchExactly(t *testing.T) {
	reg := NewRegistry(nil, zaptest.NewLogger(t)).
		MustRegister(constant("c", datatype.Int, datatype.Long, 0, int64(1)))

	_, ok := reg.Resolve(datatype.Int, datatype.Double)
	assert.False(t, ok)
	_, ok = reg.Resolve(datatype.Int, datatype.Long)
	assert.True(t, ok)
}

func TestDuplicateIdentifierLastWriteWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := NewRegistry(nil, zap.New(core))

	first := constant("dup", datatype.Double, datatype.Double, 1, 1.0)
	other := constant("other", datatype.Double, datatype.Double, 7, 3.0)
	second := constant("dup", datatype.Double, datatype.Double, 9, 2.0)
	reg.MustRegister(first, other, second)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("coding error").Len())

	got, ok := reg.Lookup(first.Identifier())
	require.True(t, ok)
	assert.Equal(t, 9, got.Priority())

	convs := reg.Converters()
	require.Len(t, convs, 2)
	assert.Equal(t, first.Identifier(), convs[0].Identifier())

	resolved, ok := reg.Resolve(datatype.Double, datatype.Double)
	require.True(t, ok)
	assert.Same(t, second, resolved)
}

func TestSourceTypes(t *testing.T) {
	reg := Init(zaptest.NewLogger(t), Builtin())

	assert.Equal(t,
		[]datatype.DataType{datatype.Boolean, datatype.Int, datatype.Long, datatype.Double, datatype.Timestamp},
		reg.SourceTypes(datatype.Double))
	assert.Equal(t, []datatype.DataType{datatype.String, datatype.Any}, reg.SourceTypes(datatype.String))
	assert.Empty(t, reg.SourceTypes(datatype.Of("tensor")))
}

func TestInitSkipsInvalidConverters(t *testing.T) {
	ext := StaticExtension("broken", nil, constant("ok", datatype.Int, datatype.Double, 0, 1.0))
	reg := Init(zaptest.NewLogger(t), ext)
	assert.Equal(t, 1, reg.Len())
}
