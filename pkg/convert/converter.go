// Package convert maps cell types to numeric representations.
//
// A TypeConverter converts values of one declared source type to one
// destination type. Converters are collected in a Registry, which resolves
// a (value type, destination type) pair to the compatible converter with the
// highest priority, preferring the first registered on ties. A bounded Cache
// memoizes resolutions in front of the registry.
//
// # Basic Usage
//
//	reg := convert.Init(logger, convert.Builtin())
//	cache, _ := convert.NewCache(convert.DefaultCacheSize)
//
//	conv, err := cache.GetOrResolve(datatype.Int, datatype.Double, reg)
//	if err != nil {
//	    return err // unsupported_type
//	}
//	v, err := conv.Convert(int32(3)) // float64(3)
//
// # Thread Safety
//
// Converters are immutable. Registry and Cache are safe for concurrent use.
package convert

import (
	"fmt"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
)

// TypeConverter converts a value of SourceType to DestinationType.
type TypeConverter interface {
	// Identifier is unique registry-wide
	Identifier() string
	// Priority ranks converters matching the same pair; higher wins
	Priority() int
	// SourceType is the declared type of accepted values
	SourceType() datatype.DataType
	// DestinationType is the type produced by Convert
	DestinationType() datatype.DataType
	// Convert converts one scalar payload
	Convert(v interface{}) (interface{}, error)
}

// Func is the conversion body of a FuncConverter.
type Func func(v interface{}) (interface{}, error)

// FuncConverter is a TypeConverter built from a function. Its identifier is
// derived from the kind name and the declared types.
type FuncConverter struct {
	kind     string
	source   datatype.DataType
	dest     datatype.DataType
	priority int
	fn       Func
}

// NewFuncConverter creates a converter. kind names the implementation and
// becomes part of the identifier.
func NewFuncConverter(kind string, source, dest datatype.DataType, priority int, fn Func) *FuncConverter {
	return &FuncConverter{
		kind:     kind,
		source:   source,
		dest:     dest,
		priority: priority,
		fn:       fn,
	}
}

// Identifier implements TypeConverter
func (c *FuncConverter) Identifier() string {
	return Identifier(c.kind, c.source, c.dest)
}

// Priority implements TypeConverter
func (c *FuncConverter) Priority() int { return c.priority }

// SourceType implements TypeConverter
func (c *FuncConverter) SourceType() datatype.DataType { return c.source }

// DestinationType implements TypeConverter
func (c *FuncConverter) DestinationType() datatype.DataType { return c.dest }

// Convert implements TypeConverter
func (c *FuncConverter) Convert(v interface{}) (interface{}, error) {
	return c.fn(v)
}

// String implements fmt.Stringer
func (c *FuncConverter) String() string {
	return fmt.Sprintf("%s[priority=%d]", c.Identifier(), c.priority)
}

// Identifier formats a converter identifier from its kind and types.
func Identifier(kind string, source, dest datatype.DataType) string {
	return fmt.Sprintf("%s(%s->%s)", kind, source.Signature(), dest.Signature())
}
