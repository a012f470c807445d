package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// NumericTable returns a table of n rows with cols double columns x0..
// where cell (i, j) holds i*cols + j.
func NumericTable(n, cols int) *table.MemoryTable {
	schema := table.Schema{Columns: make([]table.Column, cols)}
	for j := range schema.Columns {
		schema.Columns[j] = table.Column{Name: fmt.Sprintf("x%d", j), Type: datatype.Double}
	}
	rows := make([]table.Row, n)
	for i := range rows {
		cells := make([]table.FieldValue, cols)
		for j := range cells {
			cells[j] = table.Float(float64(i*cols + j))
		}
		rows[i] = table.Row{Cells: cells}
	}
	return table.NewMemoryTable(schema, rows...)
}

// LabeledTable returns a table with double columns a and b followed by a
// string column label cycling through labels.
func LabeledTable(n int, labels ...string) *table.MemoryTable {
	schema := table.Schema{Columns: []table.Column{
		{Name: "a", Type: datatype.Double},
		{Name: "b", Type: datatype.Double},
		{Name: "label", Type: datatype.String},
	}}
	rows := make([]table.Row, n)
	for i := range rows {
		rows[i] = table.Row{Cells: []table.FieldValue{
			table.Float(float64(i)),
			table.Float(float64(-i)),
			table.Str(labels[i%len(labels)]),
		}}
	}
	return table.NewMemoryTable(schema, rows...)
}

// CountingConverter wraps a converter and counts Convert calls.
type CountingConverter struct {
	convert.TypeConverter
	calls atomic.Int64
}

// NewCountingConverter wraps c.
func NewCountingConverter(c convert.TypeConverter) *CountingConverter {
	return &CountingConverter{TypeConverter: c}
}

// Convert implements convert.TypeConverter
func (c *CountingConverter) Convert(v interface{}) (interface{}, error) {
	c.calls.Add(1)
	return c.TypeConverter.Convert(v)
}

// Calls returns the number of Convert calls.
func (c *CountingConverter) Calls() int64 { return c.calls.Load() }

// Reset zeroes the call counter.
func (c *CountingConverter) Reset() { c.calls.Store(0) }

// CountingRegistry returns a registry with the builtin converters where the
// double->double converter is wrapped in a CountingConverter.
func CountingRegistry() (*convert.Registry, *CountingConverter) {
	reg := convert.NewRegistry(nil, nil)
	var counter *CountingConverter
	for _, c := range convert.Builtin().Converters() {
		if c.SourceType() == datatype.Double && c.DestinationType() == datatype.Double {
			counter = NewCountingConverter(c)
			c = counter
		}
		reg.MustRegister(c)
	}
	return reg, counter
}

// NewCache returns a converter cache of the default size.
func NewCache() *convert.Cache {
	cache, err := convert.NewCache(convert.DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	return cache
}
