package ndarray

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"gonum.org/v1/gonum/mat"
)

// ArrowSchema returns a schema of cols float64 fields named prefix0,
// prefix1 and so on.
func ArrowSchema(prefix string, cols int) *arrow.Schema {
	fields := make([]arrow.Field, cols)
	for j := range fields {
		fields[j] = arrow.Field{Name: fmt.Sprintf("%s%d", prefix, j), Type: arrow.PrimitiveTypes.Float64}
	}
	return arrow.NewSchema(fields, nil)
}

// ToRecord builds an Arrow record with one float64 column per matrix column.
// The caller must Release the record.
func (m *Matrix) ToRecord(mem memory.Allocator, prefix string) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, ArrowSchema(prefix, m.cols))
	defer b.Release()

	if m.dense != nil {
		col := make([]float64, m.rows)
		for j := 0; j < m.cols; j++ {
			b.Field(j).(*array.Float64Builder).AppendValues(mat.Col(col, j, m.dense), nil)
		}
	}
	return b.NewRecord()
}

// FromRecord reads a record of float64 columns back into a matrix.
func FromRecord(rec arrow.Record) (*Matrix, error) {
	m := NewMatrix(int(rec.NumRows()), int(rec.NumCols()))
	for j := 0; j < m.cols; j++ {
		col, ok := rec.Column(j).(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("column %s is %s, want float64", rec.ColumnName(j), rec.Column(j).DataType())
		}
		if m.dense != nil {
			m.dense.SetCol(j, col.Float64Values())
		}
	}
	return m, nil
}
