package table

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// MemoryTable is a Table backed by a slice of rows. It is safe to open
// concurrently; the rows themselves must not be mutated afterwards.
type MemoryTable struct {
	schema Schema
	rows   []Row

	opens  atomic.Int64
	closes atomic.Int64
}

// NewMemoryTable creates a table from rows. Rows without a key get
// DefaultRowKey of their position.
func NewMemoryTable(schema Schema, rows ...Row) *MemoryTable {
	copied := make([]Row, len(rows))
	for i, r := range rows {
		if r.Key == "" {
			r.Key = DefaultRowKey(int64(i))
		}
		copied[i] = r
	}
	return &MemoryTable{schema: schema, rows: copied}
}

// Schema implements Table
func (t *MemoryTable) Schema() Schema { return t.schema }

// RowCount implements Table
func (t *MemoryTable) RowCount(context.Context) (int64, error) {
	return int64(len(t.rows)), nil
}

// Open implements Table
func (t *MemoryTable) Open(context.Context) (Cursor, error) {
	t.opens.Add(1)
	return &memoryCursor{table: t}, nil
}

// Opens returns how many cursors have been opened.
func (t *MemoryTable) Opens() int64 { return t.opens.Load() }

// Closes returns how many cursors have been closed.
func (t *MemoryTable) Closes() int64 { return t.closes.Load() }

type memoryCursor struct {
	table  *MemoryTable
	pos    int
	once   sync.Once
	closed bool
}

func (c *memoryCursor) Next(ctx context.Context) (Row, error) {
	if c.closed {
		return Row{}, io.ErrClosedPipe
	}
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	if c.pos >= len(c.table.rows) {
		return Row{}, io.EOF
	}
	r := c.table.rows[c.pos]
	c.pos++
	return r, nil
}

func (c *memoryCursor) Close() error {
	c.once.Do(func() {
		c.closed = true
		c.table.closes.Add(1)
	})
	return nil
}
