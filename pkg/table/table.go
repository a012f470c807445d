// Package table defines the tabular row source the example encoder and batch
// iterator consume.
//
// The storage behind a Table is external: this package only fixes the
// contract the pipeline needs from it. A Table has a schema and a known or
// countable number of rows, and can be opened any number of times to obtain
// a Cursor that yields rows sequentially from position zero.
//
// # Cells
//
// Cells are FieldValues, a tagged union of Missing, Scalar and Collection.
// Every cell carries its runtime datatype.DataType, which is what converters
// are resolved against.
//
// # Implementations
//
// MemoryTable is provided here. File and database backed tables live under
// pkg/table/sources and register themselves with pkg/table/registry.
package table

import (
	"context"
	"fmt"
	"io"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

// Column describes one column of a table.
type Column struct {
	Name string
	Type datatype.DataType
}

// Schema is the ordered list of columns of a table.
type Schema struct {
	Columns []Column
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Indices resolves column names to positions.
func (s Schema) Indices(names ...string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		idx := s.Index(n)
		if idx < 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found in schema", n)
		}
		out = append(out, idx)
	}
	return out, nil
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Row is one table row: an identifying key and its cells in column order.
type Row struct {
	Key   string
	Cells []FieldValue
}

// NumCells returns the number of cells in the row.
func (r Row) NumCells() int { return len(r.Cells) }

// Cell returns the cell at index i.
func (r Row) Cell(i int) FieldValue { return r.Cells[i] }

// Table is a restartable, sequential row source with a known size.
type Table interface {
	// Schema returns the column layout shared by every row
	Schema() Schema
	// RowCount returns the declared or counted number of rows
	RowCount(ctx context.Context) (int64, error)
	// Open returns a cursor positioned before the first row. Each call
	// starts a fresh scan; the caller must Close the cursor.
	Open(ctx context.Context) (Cursor, error)
}

// Cursor reads rows sequentially. Next returns io.EOF after the last row.
// A cursor is owned by a single reader.
type Cursor interface {
	Next(ctx context.Context) (Row, error)
	io.Closer
}

// DefaultRowKey formats the key used by sources that have no key column.
func DefaultRowKey(i int64) string {
	return fmt.Sprintf("Row%d", i)
}
