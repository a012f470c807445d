package example

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/testutil"
)

func row(key string, cells ...table.FieldValue) table.Row {
	return table.Row{Key: key, Cells: cells}
}

func newEncoder(t *testing.T, ref table.Row, mode Mode, policy TargetPolicy) *Encoder {
	t.Helper()
	enc, err := NewEncoder(Config{
		Reference: ref,
		Mode:      mode,
		Policy:    policy,
		Registry:  convert.Init(zaptest.NewLogger(t), convert.Builtin()),
		Cache:     testutil.NewCache(),
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return enc
}

func TestClassificationOneHot(t *testing.T) {
	vocab, err := NewVocabulary("cat", "dog", "bird")
	require.NoError(t, err)

	ref := row("Row0", table.Float(1), table.Int(2), table.Str("cat"))
	enc := newEncoder(t, ref, ModeTrain, Classification(2, vocab))
	assert.Equal(t, 2, enc.FeatureLength())
	assert.Equal(t, 3, enc.TargetLength())

	ex, err := enc.Encode(row("Row1", table.Float(0.5), table.Int(7), table.Str("dog")))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 7}, ex.Features)
	assert.Equal(t, []float64{0, 1, 0}, ex.Target)
	assert.Equal(t, "Row1", ex.Key)

	label, err := vocab.Decode(ex.Target)
	require.NoError(t, err)
	assert.Equal(t, "dog", label)
}

func TestClassificationUnknownLabel(t *testing.T) {
	vocab, _ := NewVocabulary("cat", "dog")
	enc := newEncoder(t, row("Row0", table.Float(1), table.Str("cat")), ModeTrain, Classification(1, vocab))

	_, err := enc.Encode(row("Row5", table.Float(1), table.Str("fish")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeVocabulary))
	key, _ := errors.RowKey(err)
	assert.Equal(t, "Row5", key)
}

func TestClassificationRequiresVocabulary(t *testing.T) {
	empty, _ := NewVocabulary()
	for _, vocab := range []*Vocabulary{nil, empty} {
		_, err := NewEncoder(Config{
			Reference: row("Row0", table.Float(1), table.Str("cat")),
			Mode:      ModeTrain,
			Policy:    Classification(1, vocab),
			Registry:  convert.Init(zaptest.NewLogger(t), convert.Builtin()),
			Cache:     testutil.NewCache(),
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeVocabulary))
	}
}

func TestClassificationTestModeUsesAllFields(t *testing.T) {
	vocab, _ := NewVocabulary("cat")
	enc := newEncoder(t, row("Row0", table.Float(1), table.Float(2)), ModeTest, Classification(1, vocab))
	assert.Equal(t, 2, enc.FeatureLength())
	assert.Equal(t, 1, enc.TargetLength())

	ex, err := enc.Encode(row("Row1", table.Float(3), table.Float(4)))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, ex.Features)
	assert.Equal(t, []float64{0}, ex.Target)
}

func TestRegression(t *testing.T) {
	ref := row("Row0", table.Float(1), table.Long(2), table.Floats(3, 4), table.Bool(true))
	enc := newEncoder(t, ref, ModeTrain, Regression(1, 2))
	assert.Equal(t, 2, enc.FeatureLength())
	assert.Equal(t, 3, enc.TargetLength())

	ex, err := enc.Encode(row("Row1", table.Float(10), table.Long(20), table.Floats(30, 40), table.Bool(false)))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0}, ex.Features)
	assert.Equal(t, []float64{20, 30, 40}, ex.Target)
}

func TestRegressionTestMode(t *testing.T) {
	ref := row("Row0", table.Float(1), table.Float(2))
	enc := newEncoder(t, ref, ModeTest, Regression(1))
	assert.Equal(t, 2, enc.FeatureLength())

	ex, err := enc.Encode(row("Row1", table.Float(5), table.Float(6)))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, ex.Features)
	assert.Equal(t, []float64{0}, ex.Target)
}

func TestRegressionValidation(t *testing.T) {
	ref := row("Row0", table.Float(1), table.Float(2))
	for name, policy := range map[string]TargetPolicy{
		"none":         Regression(),
		"out of range": Regression(2),
		"duplicate":    Regression(1, 1),
		"unset":        {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEncoder(Config{
				Reference: ref,
				Mode:      ModeTrain,
				Policy:    policy,
				Registry:  convert.Init(zaptest.NewLogger(t), convert.Builtin()),
				Cache:     testutil.NewCache(),
			})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestReconstructionIdentity(t *testing.T) {
	ref := row("Row0", table.Float(1), table.Int(2), table.Floats(3, 4))
	enc := newEncoder(t, ref, ModeTrain, Reconstruction())
	assert.Equal(t, 4, enc.FeatureLength())
	assert.Equal(t, 4, enc.TargetLength())

	rows := []table.Row{
		ref,
		row("Row1", table.Float(-1), table.Int(0), table.Floats(0.25, 8)),
		row("Row2", table.Float(9), table.Int(9), table.Floats(9, 9)),
	}
	for _, r := range rows {
		ex, err := enc.Encode(r)
		require.NoError(t, err)
		assert.Equal(t, ex.Features, ex.Target)
		ex.Features[0] = 100
		assert.NotEqual(t, ex.Features[0], ex.Target[0])
	}
}

func TestReconstructionTestMode(t *testing.T) {
	enc := newEncoder(t, row("Row0", table.Float(1), table.Float(2)), ModeTest, Reconstruction())
	ex, err := enc.Encode(row("Row1", table.Float(1), table.Float(2)))
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, ex.Target)
}

func TestFeatureOrderFollowsFields(t *testing.T) {
	ref := row("Row0", table.Floats(1, 2), table.Float(3), table.Collection(datatype.Int, table.Int(4), table.Int(5)))
	enc := newEncoder(t, ref, ModeTest, Reconstruction())
	ex, err := enc.Encode(ref)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, ex.Features)
}

func TestVectorValuedScalars(t *testing.T) {
	ref := row("Row0", table.Scalar(datatype.BitVector, "101"), table.Float(7))
	enc := newEncoder(t, ref, ModeTest, Reconstruction())
	assert.Equal(t, 4, enc.FeatureLength())

	ex, err := enc.Encode(row("Row1", table.Scalar(datatype.BitVector, []bool{false, true, true}), table.Float(8)))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 8}, ex.Features)
}

func TestLengthMismatch(t *testing.T) {
	ref := row("Row0", table.Floats(1, 2, 3), table.Float(4))
	enc := newEncoder(t, ref, ModeTest, Reconstruction())
	require.Equal(t, 4, enc.FeatureLength())

	tests := []struct {
		name   string
		row    table.Row
		actual int
	}{
		{"too short", row("short", table.Floats(1, 2), table.Float(4)), 3},
		{"too long", row("long", table.Floats(1, 2, 3, 4), table.Float(4)), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.row)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeLengthMismatch))

			key, ok := errors.RowKey(err)
			require.True(t, ok)
			assert.Equal(t, tt.row.Key, key)

			e := err.(*errors.Error)
			expected, _ := e.Detail(errors.DetailExpected)
			actual, _ := e.Detail(errors.DetailActual)
			assert.Equal(t, 4, expected)
			assert.Equal(t, tt.actual, actual)
		})
	}

	_, err := enc.Encode(row("narrow", table.Floats(1, 2, 3)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeLengthMismatch))
}

func TestMissingFailsBeforeConversion(t *testing.T) {
	reg, counter := testutil.CountingRegistry()
	ref := row("Row0", table.Float(1), table.Float(2), table.Float(3))
	enc, err := NewEncoder(Config{
		Reference: ref,
		Mode:      ModeTest,
		Policy:    Reconstruction(),
		Registry:  reg,
		Cache:     testutil.NewCache(),
		Columns:   []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	counter.Reset()

	rows := []table.Row{
		row("Row1", table.Float(1), table.Float(2), table.Missing(datatype.Double)),
		row("Row2", table.Missing(datatype.Double), table.Float(2), table.Float(3)),
		row("Row3", table.Float(1), table.Collection(datatype.Double, table.Float(1), table.Missing(datatype.Double)), table.Float(3)),
	}
	for _, r := range rows {
		_, err := enc.Encode(r)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMissingValue))
		key, _ := errors.RowKey(err)
		assert.Equal(t, r.Key, key)
	}
	assert.Equal(t, int64(0), counter.Calls())

	_, err = enc.Encode(row("Row4", table.Float(1), table.Float(2), table.Float(3)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counter.Calls())
}

func TestMissingColumnDetail(t *testing.T) {
	enc, err := NewEncoder(Config{
		Reference: row("Row0", table.Float(1), table.Float(2)),
		Mode:      ModeTest,
		Policy:    Reconstruction(),
		Registry:  convert.Init(zaptest.NewLogger(t), convert.Builtin()),
		Cache:     testutil.NewCache(),
		Columns:   []string{"a", "b"},
	})
	require.NoError(t, err)

	_, err = enc.Encode(row("Row1", table.Float(1), table.Missing(datatype.Double)))
	require.Error(t, err)
	col, _ := err.(*errors.Error).Detail(errors.DetailColumn)
	assert.Equal(t, "b", col)
}

func TestUnsupportedType(t *testing.T) {
	enc := newEncoder(t, row("Row0", table.Float(1)), ModeTest, Reconstruction())

	_, err := enc.Encode(row("Row1", table.Str("abc")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
	e := err.(*errors.Error)
	src, _ := e.Detail(errors.DetailSourceType)
	dst, _ := e.Detail(errors.DetailDestinationType)
	assert.Equal(t, "string", src)
	assert.Equal(t, "double", dst)
	key, _ := errors.RowKey(err)
	assert.Equal(t, "Row1", key)
}

func TestConversionFailure(t *testing.T) {
	enc := newEncoder(t, row("Row0", table.Scalar(datatype.BitVector, "10")), ModeTest, Reconstruction())

	_, err := enc.Encode(row("Row1", table.Scalar(datatype.BitVector, "1x")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
	key, _ := errors.RowKey(err)
	assert.Equal(t, "Row1", key)
}

func TestReferenceRowMustEncode(t *testing.T) {
	_, err := NewEncoder(Config{
		Reference: row("Row0", table.Missing(datatype.Double)),
		Mode:      ModeTest,
		Policy:    Reconstruction(),
		Registry:  convert.Init(zaptest.NewLogger(t), convert.Builtin()),
		Cache:     testutil.NewCache(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingValue))

	_, err = NewEncoder(Config{Reference: row("Row0"), Policy: Reconstruction()})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Test")
	require.NoError(t, err)
	assert.Equal(t, ModeTest, m)
	_, err = ParseMode("predict")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
