// Package arrow reads Arrow IPC files as restartable tables.
//
// Primitive columns map to the builtin data types and list columns become
// collections of their element type. Null entries are missing cells.
package arrow

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/compression"
	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/schema"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/table/registry"
)

// Format is the registry name of this source.
const Format = "arrow"

func init() {
	registry.MustRegister(Format, func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
		return New(ctx, cfg, log)
	})
}

// Table is an Arrow IPC file.
type Table struct {
	path   string
	alg    compression.Algorithm
	schema table.Schema
	rows   int64
	logger *zap.Logger
}

// New reads the file footer to map the schema and count the rows.
func New(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if alg == compression.Auto {
		alg = compression.DetectAlgorithm(cfg.Path)
	}
	t := &Table{
		path:   cfg.Path,
		alg:    alg,
		logger: logger.Component(log, "arrow_table").With(zap.String("path", cfg.Path)),
	}

	closer, fr, err := t.fileReader()
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	defer fr.Close()

	if t.schema, err = mapSchema(fr.Schema()); err != nil {
		return nil, err
	}
	for i := 0; i < fr.NumRecords(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := fr.Record(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read arrow record batch")
		}
		t.rows += rec.NumRows()
	}

	t.logger.Info("arrow table initialized",
		zap.Int64("rows", t.rows),
		zap.Int("columns", t.schema.Len()),
		zap.Int("record_batches", fr.NumRecords()))
	return t, nil
}

// Schema implements table.Table
func (t *Table) Schema() table.Schema { return t.schema }

// RowCount implements table.Table
func (t *Table) RowCount(context.Context) (int64, error) { return t.rows, nil }

// Open implements table.Table
func (t *Table) Open(context.Context) (table.Cursor, error) {
	closer, fr, err := t.fileReader()
	if err != nil {
		return nil, err
	}
	return &cursor{table: t, closer: closer, reader: fr, batch: -1}, nil
}

// fileReader opens the IPC file. Compressed files are decompressed into
// memory since the reader needs random access.
func (t *Table) fileReader() (io.Closer, *ipc.FileReader, error) {
	var (
		src    ipc.ReadAtSeeker
		closer io.Closer
	)
	if t.alg == compression.None {
		f, err := os.Open(t.path)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open "+t.path)
		}
		src, closer = f, f
	} else {
		rc, err := compression.Open(t.path, t.alg)
		if err != nil {
			return nil, nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decompress "+t.path)
		}
		r := bytes.NewReader(data)
		src, closer = r, io.NopCloser(r)
	}

	fr, err := ipc.NewFileReader(src, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		closer.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create arrow reader").
			WithDetail("path", t.path)
	}
	return closer, fr, nil
}

type cursor struct {
	table  *Table
	closer io.Closer
	reader *ipc.FileReader

	batch  int
	record arrow.Record
	row    int
	pos    int64
	closed bool
}

func (c *cursor) Next(ctx context.Context) (table.Row, error) {
	if c.closed {
		return table.Row{}, errors.New(errors.ErrorTypeValidation, "cursor is closed")
	}
	if err := ctx.Err(); err != nil {
		return table.Row{}, err
	}

	for c.record == nil || c.row >= int(c.record.NumRows()) {
		c.batch++
		if c.batch >= c.reader.NumRecords() {
			return table.Row{}, io.EOF
		}
		rec, err := c.reader.Record(c.batch)
		if err != nil {
			return table.Row{}, errors.Wrap(err, errors.ErrorTypeData, "failed to read arrow record batch").
				WithDetail(errors.DetailRowKey, table.DefaultRowKey(c.pos))
		}
		c.record, c.row = rec, 0
	}

	key := table.DefaultRowKey(c.pos)
	cols := c.table.schema.Columns
	cells := make([]table.FieldValue, len(cols))
	for i, col := range cols {
		cell, err := schema.FromNative(extractValue(c.record.Column(i), c.row), col.Type)
		if err != nil {
			return table.Row{}, errors.Annotate(err, errors.DetailRowKey, key).
				WithDetail(errors.DetailColumn, col.Name)
		}
		cells[i] = cell
	}
	c.row++
	c.pos++
	return table.Row{Key: key, Cells: cells}, nil
}

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.record = nil
	err := c.reader.Close()
	if cerr := c.closer.Close(); err == nil {
		err = cerr
	}
	return err
}

func mapSchema(s *arrow.Schema) (table.Schema, error) {
	cols := make([]table.Column, s.NumFields())
	for i, f := range s.Fields() {
		t, err := mapType(f.Type)
		if err != nil {
			return table.Schema{}, errors.Annotate(err, errors.DetailColumn, f.Name)
		}
		cols[i] = table.Column{Name: f.Name, Type: t}
	}
	return table.Schema{Columns: cols}, nil
}

func mapType(dt arrow.DataType) (datatype.DataType, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return datatype.Boolean, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16:
		return datatype.Int, nil
	case arrow.INT64, arrow.UINT32:
		return datatype.Long, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return datatype.Double, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return datatype.String, nil
	case arrow.DATE32, arrow.TIMESTAMP:
		return datatype.Timestamp, nil
	case arrow.LIST:
		elem, err := mapType(dt.(*arrow.ListType).Elem())
		if err != nil {
			return datatype.DataType{}, err
		}
		return datatype.CollectionOf(elem), nil
	default:
		return datatype.DataType{}, errors.Newf(errors.ErrorTypeCapability, "arrow type %s is not supported", dt)
	}
}

// extractValue returns the Go value at index, or nil for nulls.
func extractValue(arr arrow.Array, index int) interface{} {
	if arr.IsNull(index) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(index)
	case *array.Int8:
		return a.Value(index)
	case *array.Int16:
		return a.Value(index)
	case *array.Int32:
		return a.Value(index)
	case *array.Int64:
		return a.Value(index)
	case *array.Uint8:
		return a.Value(index)
	case *array.Uint16:
		return a.Value(index)
	case *array.Uint32:
		return a.Value(index)
	case *array.Float32:
		return a.Value(index)
	case *array.Float64:
		return a.Value(index)
	case *array.String:
		return a.Value(index)
	case *array.LargeString:
		return a.Value(index)
	case *array.Date32:
		return time.Unix(int64(a.Value(index))*86400, 0).UTC()
	case *array.Timestamp:
		ts := int64(a.Value(index))
		switch a.DataType().(*arrow.TimestampType).Unit {
		case arrow.Second:
			return time.Unix(ts, 0).UTC()
		case arrow.Millisecond:
			return time.UnixMilli(ts).UTC()
		case arrow.Microsecond:
			return time.UnixMicro(ts).UTC()
		default:
			return time.Unix(0, ts).UTC()
		}
	case *array.List:
		start, end := a.ValueOffsets(index)
		values := a.ListValues()
		out := make([]interface{}, end-start)
		for i := start; i < end; i++ {
			out[i-start] = extractValue(values, int(i))
		}
		return out
	default:
		return nil
	}
}
