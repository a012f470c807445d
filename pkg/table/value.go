package table

import (
	"fmt"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
)

// Kind tags the variant held by a FieldValue.
type Kind uint8

const (
	// KindMissing is an absent cell
	KindMissing Kind = iota
	// KindScalar is a single value
	KindScalar
	// KindCollection is an ordered sequence of values
	KindCollection
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindScalar:
		return "scalar"
	case KindCollection:
		return "collection"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldValue is one cell of a row: Missing, Scalar or Collection. Each value
// reports its own runtime type.
type FieldValue struct {
	kind  Kind
	typ   datatype.DataType
	value interface{}
	elems []FieldValue
}

// Missing returns a missing cell of the given declared type.
func Missing(typ datatype.DataType) FieldValue {
	return FieldValue{kind: KindMissing, typ: typ}
}

// Scalar returns a scalar cell.
func Scalar(typ datatype.DataType, v interface{}) FieldValue {
	return FieldValue{kind: KindScalar, typ: typ, value: v}
}

// Collection returns a collection cell. The collection type is derived from
// elemType.
func Collection(elemType datatype.DataType, elems ...FieldValue) FieldValue {
	return FieldValue{kind: KindCollection, typ: datatype.CollectionOf(elemType), elems: elems}
}

// Kind returns the variant tag.
func (f FieldValue) Kind() Kind { return f.kind }

// Type returns the runtime type of the cell.
func (f FieldValue) Type() datatype.DataType { return f.typ }

// IsMissing reports whether the cell is missing.
func (f FieldValue) IsMissing() bool { return f.kind == KindMissing }

// IsCollection reports whether the cell holds a collection.
func (f FieldValue) IsCollection() bool { return f.kind == KindCollection }

// Value returns the scalar payload. It is nil for missing and collection
// cells.
func (f FieldValue) Value() interface{} { return f.value }

// Elements returns the elements of a collection cell.
func (f FieldValue) Elements() []FieldValue { return f.elems }

// HasMissing reports whether the cell or any nested element is missing.
func (f FieldValue) HasMissing() bool {
	switch f.kind {
	case KindMissing:
		return true
	case KindCollection:
		for _, e := range f.elems {
			if e.HasMissing() {
				return true
			}
		}
	}
	return false
}

// String implements fmt.Stringer
func (f FieldValue) String() string {
	switch f.kind {
	case KindMissing:
		return "?"
	case KindCollection:
		return fmt.Sprintf("%v", f.elems)
	default:
		return fmt.Sprintf("%v", f.value)
	}
}

// Float returns a double scalar.
func Float(v float64) FieldValue { return Scalar(datatype.Double, v) }

// Int returns an int scalar.
func Int(v int32) FieldValue { return Scalar(datatype.Int, v) }

// Long returns a long scalar.
func Long(v int64) FieldValue { return Scalar(datatype.Long, v) }

// Bool returns a boolean scalar.
func Bool(v bool) FieldValue { return Scalar(datatype.Boolean, v) }

// Str returns a string scalar.
func Str(v string) FieldValue { return Scalar(datatype.String, v) }

// Floats returns a collection of double scalars.
func Floats(vs ...float64) FieldValue {
	elems := make([]FieldValue, len(vs))
	for i, v := range vs {
		elems[i] = Float(v)
	}
	return Collection(datatype.Double, elems...)
}
