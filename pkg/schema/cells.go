package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// DefaultCollectionSeparator splits collection cells in text sources.
const DefaultCollectionSeparator = ";"

// ParseText converts a text cell to a value of type t. Empty text is
// Missing. Collection cells are split on sep and each element is parsed
// with the element type.
func ParseText(text string, t datatype.DataType, sep string) (table.FieldValue, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return table.Missing(t), nil
	}

	if t.IsCollection() {
		if sep == "" {
			sep = DefaultCollectionSeparator
		}
		parts := strings.Split(text, sep)
		elems := make([]table.FieldValue, len(parts))
		for i, p := range parts {
			v, err := ParseText(p, t.Element(), sep)
			if err != nil {
				return table.FieldValue{}, err
			}
			elems[i] = v
		}
		return table.Collection(t.Element(), elems...), nil
	}

	switch t.Name() {
	case datatype.NameInt:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return table.FieldValue{}, parseError(text, t, err)
		}
		return table.Int(int32(n)), nil
	case datatype.NameLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return table.FieldValue{}, parseError(text, t, err)
		}
		return table.Long(n), nil
	case datatype.NameDoubleVector:
		if sep == "" {
			sep = DefaultCollectionSeparator
		}
		parts := strings.Split(text, sep)
		vec := make([]float64, len(parts))
		for i, p := range parts {
			f, err := cast.ToFloat64E(strings.TrimSpace(p))
			if err != nil {
				return table.FieldValue{}, parseError(text, t, err)
			}
			vec[i] = f
		}
		return table.Scalar(t, vec), nil
	case datatype.NameString, datatype.NameBitVector:
		return table.Scalar(t, text), nil
	default:
		return FromNative(text, t)
	}
}

// FromNative converts a decoded value, as produced by JSON, Avro or SQL
// drivers, to a value of type t. nil is Missing.
func FromNative(v interface{}, t datatype.DataType) (table.FieldValue, error) {
	if v == nil {
		return table.Missing(t), nil
	}

	if t.IsCollection() {
		items, err := cast.ToSliceE(v)
		if err != nil {
			return table.FieldValue{}, parseError(v, t, err)
		}
		elems := make([]table.FieldValue, len(items))
		for i, item := range items {
			if elems[i], err = FromNative(item, t.Element()); err != nil {
				return table.FieldValue{}, err
			}
		}
		return table.Collection(t.Element(), elems...), nil
	}

	var (
		out interface{}
		err error
	)
	switch t.Name() {
	case datatype.NameDouble:
		out, err = cast.ToFloat64E(v)
	case datatype.NameLong:
		out, err = cast.ToInt64E(v)
	case datatype.NameInt:
		out, err = cast.ToInt32E(v)
	case datatype.NameBoolean:
		out, err = cast.ToBoolE(v)
	case datatype.NameTimestamp:
		out, err = cast.ToTimeE(v)
	case datatype.NameString:
		out, err = cast.ToStringE(v)
	case datatype.NameBitVector:
		out, err = bits(v)
	case datatype.NameDoubleVector:
		out, err = doubles(v)
	default:
		out = v
	}
	if err != nil {
		return table.FieldValue{}, parseError(v, t, err)
	}
	return table.Scalar(t, out), nil
}

func bits(v interface{}) (interface{}, error) {
	switch b := v.(type) {
	case string, []bool:
		return b, nil
	case []byte:
		return string(b), nil
	default:
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(items))
		for i, item := range items {
			if out[i], err = cast.ToBoolE(item); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

func doubles(v interface{}) ([]float64, error) {
	if f, ok := v.([]float64); ok {
		return f, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseError(v interface{}, t datatype.DataType, cause error) *errors.Error {
	return errors.Wrap(cause, errors.ErrorTypeData, fmt.Sprintf("cannot read %v as %s", v, t.Signature()))
}
