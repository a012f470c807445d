// Package ndarray provides the dense numeric containers examples and batches
// are assembled into. Matrix wraps a gonum mat.Dense so batches can be
// handed to gonum based numeric code without copying.
package ndarray

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major matrix of float64. Unlike mat.Dense it may
// have zero rows, which is how a batch whose rows were all skipped looks.
type Matrix struct {
	rows, cols int
	// nil when rows or cols is zero
	dense *mat.Dense
}

// NewMatrix returns a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("ndarray: negative dimensions %dx%d", rows, cols))
	}
	m := &Matrix{rows: rows, cols: cols}
	if rows > 0 && cols > 0 {
		m.dense = mat.NewDense(rows, cols, nil)
	}
	return m
}

// FromRows stacks equally long vectors into a matrix. An empty input yields
// a 0 x 0 matrix.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	cols := len(rows[0])
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), cols)
		}
	}
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Dense returns the backing gonum matrix, nil for an empty matrix.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 {
	m.check(i, j)
	return m.dense.At(i, j)
}

// Set stores v at (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.check(i, j)
	m.dense.Set(i, j, v)
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	m.check(i, 0)
	return mat.Row(nil, i, m.dense)
}

// SetRow copies v into row i. It panics unless v has exactly Cols elements.
func (m *Matrix) SetRow(i int, v []float64) {
	if len(v) != m.cols {
		panic(fmt.Sprintf("ndarray: row %d has %d values, matrix has %d columns", i, len(v), m.cols))
	}
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("ndarray: row %d out of range %dx%d", i, m.rows, m.cols))
	}
	if m.dense != nil {
		m.dense.SetRow(i, v)
	}
}

// Data returns the backing slice in row-major order.
func (m *Matrix) Data() []float64 {
	if m.dense == nil {
		return nil
	}
	return m.dense.RawMatrix().Data
}

// ToRows returns a copy of the matrix as a slice of rows.
func (m *Matrix) ToRows() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		if m.cols == 0 {
			out[i] = []float64{}
			continue
		}
		out[i] = m.Row(i)
	}
	return out
}

// Equal reports whether both matrices have the same shape and elements.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	if m.dense == nil {
		return true
	}
	return mat.Equal(m.dense, o.dense)
}

// String implements fmt.Stringer
func (m *Matrix) String() string {
	if m.dense == nil {
		return fmt.Sprintf("Matrix(%dx%d)", m.rows, m.cols)
	}
	return fmt.Sprintf("Matrix(%dx%d)\n%v", m.rows, m.cols, mat.Formatted(m.dense))
}

func (m *Matrix) check(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("ndarray: index (%d,%d) out of range %dx%d", i, j, m.rows, m.cols))
	}
}

// ArgMax returns the index of the largest element, the first on ties. It
// returns -1 for an empty or all NaN vector. NaN elements are never selected.
func ArgMax(v []float64) int {
	for _, x := range v {
		if !math.IsNaN(x) {
			return floats.MaxIdx(v)
		}
	}
	return -1
}

// OneHot returns a vector of length n with 1 at pos and 0 elsewhere.
func OneHot(n, pos int) []float64 {
	if pos < 0 || pos >= n {
		panic(fmt.Sprintf("ndarray: one-hot position %d out of range [0,%d)", pos, n))
	}
	v := make([]float64, n)
	v[pos] = 1
	return v
}

// Concat concatenates vectors in order.
func Concat(vs ...[]float64) []float64 {
	n := 0
	for _, v := range vs {
		n += len(v)
	}
	out := make([]float64, 0, n)
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}
