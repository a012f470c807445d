package convert

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

// Builtin converter kinds.
const (
	KindNumeric   = "numeric"
	KindTimestamp = "timestamp"
	KindBitVector = "bitvector"
	KindVector    = "vector"
	KindString    = "string"
)

// Builtin returns the extension contributing the converters for the builtin
// cell types.
func Builtin() Extension {
	return StaticExtension("builtin",
		NewFuncConverter(KindNumeric, datatype.Boolean, datatype.Double, 10, toDouble),
		NewFuncConverter(KindNumeric, datatype.Int, datatype.Double, 10, toDouble),
		NewFuncConverter(KindNumeric, datatype.Long, datatype.Double, 5, toDouble),
		NewFuncConverter(KindNumeric, datatype.Double, datatype.Double, 0, toDouble),
		NewFuncConverter(KindTimestamp, datatype.Timestamp, datatype.Double, 0, timestampToDouble),
		NewFuncConverter(KindBitVector, datatype.BitVector, datatype.DoubleVector, 10, bitVectorToDoubles),
		NewFuncConverter(KindVector, datatype.DoubleVector, datatype.DoubleVector, 0, toDoubles),
		NewFuncConverter(KindString, datatype.String, datatype.String, 10, toString),
		NewFuncConverter(KindString, datatype.Any, datatype.String, -10, toString),
	)
}

func toDouble(v interface{}) (interface{}, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, conversionError(v, datatype.Double, err)
	}
	return f, nil
}

// timestampToDouble converts to milliseconds since the Unix epoch.
func timestampToDouble(v interface{}) (interface{}, error) {
	t, err := cast.ToTimeE(v)
	if err != nil {
		return nil, conversionError(v, datatype.Double, err)
	}
	return float64(t.UnixMilli()), nil
}

// bitVectorToDoubles accepts []bool or a string of '0' and '1' characters.
func bitVectorToDoubles(v interface{}) (interface{}, error) {
	switch bits := v.(type) {
	case []bool:
		out := make([]float64, len(bits))
		for i, b := range bits {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	case string:
		bits = strings.TrimSpace(bits)
		out := make([]float64, len(bits))
		for i, r := range bits {
			switch r {
			case '0':
			case '1':
				out[i] = 1
			default:
				return nil, conversionError(v, datatype.DoubleVector, fmt.Errorf("invalid bit %q at %d", r, i))
			}
		}
		return out, nil
	default:
		return nil, conversionError(v, datatype.DoubleVector, fmt.Errorf("unsupported bit vector payload %T", v))
	}
}

func toDoubles(v interface{}) (interface{}, error) {
	switch vec := v.(type) {
	case []float64:
		out := make([]float64, len(vec))
		copy(out, vec)
		return out, nil
	case []interface{}:
		out := make([]float64, len(vec))
		for i, e := range vec {
			f, err := cast.ToFloat64E(e)
			if err != nil {
				return nil, conversionError(v, datatype.DoubleVector, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		s, err := cast.ToSliceE(v)
		if err != nil {
			return nil, conversionError(v, datatype.DoubleVector, err)
		}
		return toDoubles(s)
	}
}

func toString(v interface{}) (interface{}, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, conversionError(v, datatype.String, err)
	}
	return s, nil
}

func conversionError(v interface{}, dest datatype.DataType, cause error) *errors.Error {
	return errors.Wrap(cause, errors.ErrorTypeConversion, fmt.Sprintf("cannot convert %T to %s", v, dest.Signature())).
		WithDetail(errors.DetailDestinationType, dest.Signature())
}
