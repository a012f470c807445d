// Package datatype describes the runtime types reported by table cells and
// the compatibility relation converters are resolved against.
//
// A DataType is a small comparable value so it can be used directly as a map
// key. Compatibility is not derived by reflection: a Hierarchy declares the
// closed set of child -> parent edges, and IsCompatible walks them.
package datatype

import (
	"strings"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

// DataType identifies the type of a cell value. Collection types carry the
// name of their element type.
type DataType struct {
	name string
	elem string
}

// Builtin type names.
const (
	NameAny          = "any"
	NameDouble       = "double"
	NameLong         = "long"
	NameInt          = "int"
	NameBoolean      = "boolean"
	NameString       = "string"
	NameTimestamp    = "timestamp"
	NameBitVector    = "bitvector"
	NameDoubleVector = "double_vector"

	collectionPrefix = "collection<"
)

// Builtin types.
var (
	Any          = Of(NameAny)
	Double       = Of(NameDouble)
	Long         = Of(NameLong)
	Int          = Of(NameInt)
	Boolean      = Of(NameBoolean)
	String       = Of(NameString)
	Timestamp    = Of(NameTimestamp)
	BitVector    = Of(NameBitVector)
	DoubleVector = Of(NameDoubleVector)
)

// Of returns the scalar type with the given name.
func Of(name string) DataType {
	return DataType{name: name}
}

// CollectionOf returns the collection type whose elements have type elem.
// Nested collections are flattened to their innermost element name.
func CollectionOf(elem DataType) DataType {
	if elem.IsCollection() {
		return DataType{name: "collection", elem: elem.elem}
	}
	return DataType{name: "collection", elem: elem.name}
}

// Name returns the type name. Collections report "collection".
func (t DataType) Name() string {
	return t.name
}

// IsZero reports whether t is the zero DataType.
func (t DataType) IsZero() bool {
	return t.name == ""
}

// IsCollection reports whether t is a collection type.
func (t DataType) IsCollection() bool {
	return t.elem != ""
}

// Element returns the element type of a collection, or the zero type.
func (t DataType) Element() DataType {
	if t.elem == "" {
		return DataType{}
	}
	return Of(t.elem)
}

// Signature returns the canonical text of the type, used as cache key.
func (t DataType) Signature() string {
	if t.elem != "" {
		return collectionPrefix + t.elem + ">"
	}
	return t.name
}

// String implements fmt.Stringer
func (t DataType) String() string {
	return t.Signature()
}

// Parse converts a signature such as "double" or "collection<int>" into a
// DataType.
func Parse(sig string) (DataType, error) {
	sig = strings.TrimSpace(strings.ToLower(sig))
	if sig == "" {
		return DataType{}, errors.New(errors.ErrorTypeValidation, "empty type signature")
	}
	if strings.HasPrefix(sig, collectionPrefix) {
		if !strings.HasSuffix(sig, ">") {
			return DataType{}, errors.Newf(errors.ErrorTypeValidation, "malformed collection type %q", sig)
		}
		inner, err := Parse(sig[len(collectionPrefix) : len(sig)-1])
		if err != nil {
			return DataType{}, err
		}
		return CollectionOf(inner), nil
	}
	if strings.ContainsAny(sig, "<> ") {
		return DataType{}, errors.Newf(errors.ErrorTypeValidation, "malformed type %q", sig)
	}
	return Of(sig), nil
}

// MustParse is like Parse but panics on error. Intended for static tables.
func MustParse(sig string) DataType {
	t, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return t
}
