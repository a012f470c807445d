// Package example turns table rows into fixed-length numeric examples.
//
// An Encoder is built from a reference row, which fixes the feature length
// (and the target length) for every row encoded afterwards. Fields are
// converted to doubles through the converter cache and concatenated in row
// order; collection fields are flattened element by element.
//
// The target is selected by a TargetPolicy:
//
//   - Classification: one-hot position of the label in a Vocabulary
//   - Regression: converted values of the target columns
//   - Reconstruction: a copy of the features
//
// In Test mode every field is a feature and the target is the single
// element placeholder [0].
package example

import (
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/metrics"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// Example is one encoded row.
type Example struct {
	Key      string
	Features []float64
	Target   []float64
}

// Config configures an Encoder.
type Config struct {
	// Reference fixes the expected lengths
	Reference table.Row
	Mode      Mode
	Policy    TargetPolicy
	Registry  convert.Resolver
	Cache     *convert.Cache
	// Columns names the fields for error details, optional
	Columns []string
	Logger  *zap.Logger
}

// Encoder converts rows into Examples. It holds no per-row state and is
// safe for concurrent use.
type Encoder struct {
	mode    Mode
	policy  TargetPolicy
	reg     convert.Resolver
	cache   *convert.Cache
	columns []string
	width   int

	featureLen int
	targetLen  int

	logger *zap.Logger
}

// NewEncoder validates the configuration and measures the reference row.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Registry == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "converter registry is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "converter cache is required")
	}
	if cfg.Mode != ModeTrain && cfg.Mode != ModeTest {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid mode %s", cfg.Mode)
	}

	width := cfg.Reference.NumCells()
	if width == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "reference row has no fields")
	}
	if err := cfg.Policy.validate(width); err != nil {
		return nil, err
	}

	e := &Encoder{
		mode:    cfg.Mode,
		policy:  cfg.Policy,
		reg:     cfg.Registry,
		cache:   cfg.Cache,
		columns: cfg.Columns,
		width:   width,
		logger:  logger.Component(cfg.Logger, "row_encoder"),
	}

	features, target, err := e.assemble(cfg.Reference)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "cannot measure reference row")
	}
	e.featureLen = len(features)
	e.targetLen = len(target)
	if e.featureLen == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "reference row yields no features")
	}

	e.logger.Debug("encoder created",
		zap.String("mode", e.mode.String()),
		zap.String("policy", e.policy.Kind().String()),
		zap.Int("feature_length", e.featureLen),
		zap.Int("target_length", e.targetLen))
	return e, nil
}

// FeatureLength returns the fixed feature vector length.
func (e *Encoder) FeatureLength() int { return e.featureLen }

// TargetLength returns the fixed target vector length. It is 1 in Test mode.
func (e *Encoder) TargetLength() int { return e.targetLen }

// Mode returns the encoding mode.
func (e *Encoder) Mode() Mode { return e.mode }

// Policy returns the target policy.
func (e *Encoder) Policy() TargetPolicy { return e.policy }

// Vocabulary returns the label vocabulary of a classification policy.
func (e *Encoder) Vocabulary() *Vocabulary { return e.policy.Vocabulary() }

// Encode converts one row. Errors carry the row key and are one of
// missing_value, unsupported_type, conversion, length_mismatch or
// vocabulary.
func (e *Encoder) Encode(row table.Row) (*Example, error) {
	features, target, err := e.assemble(row)
	if err != nil {
		return nil, errors.Annotate(err, errors.DetailRowKey, row.Key)
	}

	if len(features) != e.featureLen {
		return nil, lengthMismatch(row.Key, "feature", e.featureLen, len(features))
	}
	if len(target) != e.targetLen {
		return nil, lengthMismatch(row.Key, "target", e.targetLen, len(target))
	}

	metrics.RowsEncoded.WithLabelValues(e.mode.String(), e.policy.Kind().String()).Inc()
	return &Example{Key: row.Key, Features: features, Target: target}, nil
}

// assemble builds both vectors without checking their lengths.
func (e *Encoder) assemble(row table.Row) ([]float64, []float64, error) {
	if row.NumCells() != e.width {
		return nil, nil, errors.Newf(errors.ErrorTypeLengthMismatch, "row has %d fields, reference has %d", row.NumCells(), e.width).
			WithDetail(errors.DetailExpected, e.width).
			WithDetail(errors.DetailActual, row.NumCells())
	}

	// missing cells fail before anything is converted
	for i, cell := range row.Cells {
		if cell.HasMissing() {
			return nil, nil, errors.Newf(errors.ErrorTypeMissingValue, "field %s is missing", e.columnName(i)).
				WithDetail(errors.DetailColumn, e.columnName(i))
		}
	}

	train := e.mode == ModeTrain
	features := make([]float64, 0, e.featureLen)
	var target []float64

	for i, cell := range row.Cells {
		var err error
		switch {
		case !train || !e.policy.isTarget(i):
			features, err = e.appendField(features, cell)
		case e.policy.Kind() == PolicyClassification:
			target, err = e.oneHot(cell)
		default:
			target, err = e.appendField(target, cell)
		}
		if err != nil {
			return nil, nil, errors.Annotate(err, errors.DetailColumn, e.columnName(i))
		}
	}

	switch {
	case !train:
		target = []float64{0}
	case e.policy.Kind() == PolicyReconstruction:
		target = make([]float64, len(features))
		copy(target, features)
	}
	return features, target, nil
}

// appendField converts a cell and appends its numeric values. Collections
// are flattened in element order.
func (e *Encoder) appendField(acc []float64, cell table.FieldValue) ([]float64, error) {
	if cell.IsCollection() {
		var err error
		for _, elem := range cell.Elements() {
			if acc, err = e.appendField(acc, elem); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}

	conv, err := e.resolveNumeric(cell.Type())
	if err != nil {
		return nil, err
	}
	out, err := conv.Convert(cell.Value())
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConversion) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConversion, fmt.Sprintf("converter %s failed", conv.Identifier()))
	}

	switch v := out.(type) {
	case float64:
		return append(acc, v), nil
	case []float64:
		return append(acc, v...), nil
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion, fmt.Sprintf("converter %s returned %T", conv.Identifier(), out))
		}
		return append(acc, f), nil
	}
}

// resolveNumeric prefers a scalar double converter and falls back to a
// vector converter.
func (e *Encoder) resolveNumeric(t datatype.DataType) (convert.TypeConverter, error) {
	conv, err := e.cache.GetOrResolve(t, datatype.Double, e.reg)
	if err == nil {
		return conv, nil
	}
	if !errors.IsType(err, errors.ErrorTypeUnsupportedType) {
		return nil, err
	}
	if conv, vecErr := e.cache.GetOrResolve(t, datatype.DoubleVector, e.reg); vecErr == nil {
		return conv, nil
	}
	return nil, err
}

func (e *Encoder) oneHot(cell table.FieldValue) ([]float64, error) {
	label, err := labelOf(cell, e.reg, e.cache)
	if err != nil {
		return nil, err
	}
	return e.policy.Vocabulary().Encode(label)
}

func (e *Encoder) columnName(i int) string {
	if i < len(e.columns) {
		return e.columns[i]
	}
	return fmt.Sprintf("#%d", i)
}

func lengthMismatch(key, vector string, expected, actual int) *errors.Error {
	return errors.Newf(errors.ErrorTypeLengthMismatch,
		"row %s: %s vector has length %d, expected %d (rows with variable-length collections?)", key, vector, actual, expected).
		WithDetail(errors.DetailRowKey, key).
		WithDetail(errors.DetailExpected, expected).
		WithDetail(errors.DetailActual, actual)
}
