// Package jsonl reads newline delimited JSON objects as restartable tables.
//
// Each object is one row. A null value or an absent key is a missing cell
// and arrays become collections.
package jsonl

import (
	"context"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/compression"
	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/schema"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/table/registry"
)

// Format is the registry name of this source.
const Format = "jsonl"

func init() {
	registry.MustRegister(Format, func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
		return New(ctx, cfg, log)
	})
}

// Table is a JSON lines file.
type Table struct {
	path   string
	alg    compression.Algorithm
	schema table.Schema
	rows   int64
	logger *zap.Logger
}

// New inspects the file at cfg.Path. Without declared columns the column
// names are the sorted keys of the first object and their types are
// inferred from the first cfg.SampleSize objects.
func New(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	t := &Table{
		path:   cfg.Path,
		alg:    alg,
		logger: logger.Component(log, "jsonl_table").With(zap.String("path", cfg.Path)),
	}
	if err := t.discover(ctx, cfg); err != nil {
		return nil, err
	}

	t.logger.Info("jsonl table initialized",
		zap.Int64("rows", t.rows),
		zap.Int("columns", t.schema.Len()))
	return t, nil
}

// Schema implements table.Table
func (t *Table) Schema() table.Schema { return t.schema }

// RowCount implements table.Table
func (t *Table) RowCount(context.Context) (int64, error) { return t.rows, nil }

// Open implements table.Table
func (t *Table) Open(context.Context) (table.Cursor, error) {
	rc, dec, err := t.decoder()
	if err != nil {
		return nil, err
	}
	return &cursor{table: t, file: rc, dec: dec}, nil
}

func (t *Table) decoder() (io.ReadCloser, *json.Decoder, error) {
	rc, err := compression.Open(t.path, t.alg)
	if err != nil {
		return nil, nil, err
	}
	dec := json.NewDecoder(rc)
	dec.UseNumber()
	return rc, dec, nil
}

func (t *Table) discover(ctx context.Context, cfg *config.TableConfig) error {
	rc, dec, err := t.decoder()
	if err != nil {
		return err
	}
	defer rc.Close()

	declared, hasDeclared := cfg.Schema()
	sampleSize := cfg.SampleSize
	if hasDeclared {
		sampleSize = 0
	} else if sampleSize <= 0 {
		sampleSize = schema.DefaultSampleSize
	}

	var (
		names   []string
		samples []map[string]interface{}
	)
	for {
		if t.rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		obj, err := decodeObject(dec, table.DefaultRowKey(t.rows))
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if names == nil && !hasDeclared {
			names = sortedKeys(obj)
		}
		if len(samples) < sampleSize {
			samples = append(samples, obj)
		}
		t.rows++
	}

	if hasDeclared {
		t.schema = declared
		return nil
	}
	if names == nil {
		return errors.New(errors.ErrorTypeData, "jsonl file has no objects to infer columns from").
			WithDetail("path", t.path)
	}

	rows := make([][]interface{}, len(samples))
	for i, obj := range samples {
		row := make([]interface{}, len(names))
		for j, name := range names {
			row[j] = obj[name]
		}
		rows[i] = row
	}
	t.schema = schema.NewInferer(t.logger).InferSchema(names, rows)
	return nil
}

type cursor struct {
	table  *Table
	file   io.ReadCloser
	dec    *json.Decoder
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

	key := table.DefaultRowKey(c.pos)
	obj, err := decodeObject(c.dec, key)
	if err != nil {
		return table.Row{}, err
	}
	c.pos++

	cols := c.table.schema.Columns
	cells := make([]table.FieldValue, len(cols))
	for i, col := range cols {
		cell, err := schema.FromNative(obj[col.Name], col.Type)
		if err != nil {
			return table.Row{}, errors.Annotate(err, errors.DetailRowKey, key).
				WithDetail(errors.DetailColumn, col.Name)
		}
		cells[i] = cell
	}
	return table.Row{Key: key, Cells: cells}, nil
}

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

// decodeObject reads the next object with numbers normalised to int64 or
// float64. It returns io.EOF at the end of the stream.
func decodeObject(dec *json.Decoder, key string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed json object").
			WithDetail(errors.DetailRowKey, key)
	}
	for k, v := range obj {
		obj[k] = normalize(v)
	}
	return obj, nil
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []interface{}:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	default:
		return v
	}
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
