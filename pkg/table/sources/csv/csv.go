// Package csv reads delimited text files as restartable tables.
package csv

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

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
const Format = "csv"

func init() {
	registry.MustRegister(Format, func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
		return New(ctx, cfg, log)
	})
}

// Table is a CSV file. The schema and row count are determined once when
// the table is created; every Open rereads the file from the start.
type Table struct {
	path      string
	alg       compression.Algorithm
	delimiter rune
	hasHeader bool
	separator string

	schema table.Schema
	rows   int64

	logger *zap.Logger
}

// New inspects the file at cfg.Path. Declared columns are used when present,
// otherwise column types are inferred from the first cfg.SampleSize rows.
func New(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	t := &Table{
		path:      cfg.Path,
		alg:       alg,
		delimiter: ',',
		hasHeader: cfg.HasHeader,
		separator: cfg.CollectionSeparator,
		logger:    logger.Component(log, "csv_table").With(zap.String("path", cfg.Path)),
	}
	if d := []rune(cfg.Delimiter); len(d) == 1 {
		t.delimiter = d[0]
	}

	if err := t.discover(ctx, cfg); err != nil {
		return nil, err
	}

	t.logger.Info("csv table initialized",
		zap.Int64("rows", t.rows),
		zap.Int("columns", t.schema.Len()),
		zap.Bool("has_header", t.hasHeader))
	return t, nil
}

// Schema implements table.Table
func (t *Table) Schema() table.Schema { return t.schema }

// RowCount implements table.Table
func (t *Table) RowCount(context.Context) (int64, error) { return t.rows, nil }

// Open implements table.Table
func (t *Table) Open(ctx context.Context) (table.Cursor, error) {
	rc, r, err := t.reader()
	if err != nil {
		return nil, err
	}
	if t.hasHeader {
		if _, err := r.Read(); err != nil && err != io.EOF {
			rc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read csv header")
		}
	}
	return &cursor{table: t, file: rc, reader: r}, nil
}

func (t *Table) reader() (io.ReadCloser, *csv.Reader, error) {
	rc, err := compression.Open(t.path, t.alg)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(rc)
	r.Comma = t.delimiter
	r.ReuseRecord = true
	return rc, r, nil
}

// discover reads the header, samples rows for inference and counts the
// data rows in a single pass.
func (t *Table) discover(ctx context.Context, cfg *config.TableConfig) error {
	rc, r, err := t.reader()
	if err != nil {
		return err
	}
	defer rc.Close()

	var names []string
	if t.hasHeader {
		header, err := r.Read()
		if err == io.EOF {
			return errors.New(errors.ErrorTypeData, "csv file is empty").WithDetail("path", t.path)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read csv header")
		}
		names = append(names, header...)
	}

	declared, hasDeclared := cfg.Schema()
	sampleSize := cfg.SampleSize
	if hasDeclared {
		sampleSize = 0
	} else if sampleSize <= 0 {
		sampleSize = schema.DefaultSampleSize
	}

	var samples [][]interface{}
	for {
		if t.rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "malformed csv record").
				WithDetail(errors.DetailRowKey, table.DefaultRowKey(t.rows))
		}
		if names == nil {
			names = generatedNames(len(record))
		}
		if len(samples) < sampleSize {
			sample := make([]interface{}, len(record))
			for i, v := range record {
				sample[i] = v
			}
			samples = append(samples, sample)
		}
		t.rows++
	}

	switch {
	case hasDeclared:
		if names != nil && len(names) != declared.Len() {
			return errors.Newf(errors.ErrorTypeConfig, "csv has %d columns but %d are declared", len(names), declared.Len()).
				WithDetail("path", t.path)
		}
		t.schema = declared
	default:
		t.schema = schema.NewInferer(t.logger).InferSchema(names, samples)
	}
	return nil
}

type cursor struct {
	table  *Table
	file   io.ReadCloser
	reader *csv.Reader
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

	record, err := c.reader.Read()
	if err == io.EOF {
		return table.Row{}, io.EOF
	}
	key := table.DefaultRowKey(c.pos)
	if err != nil {
		return table.Row{}, errors.Wrap(err, errors.ErrorTypeData, "malformed csv record").
			WithDetail(errors.DetailRowKey, key)
	}
	c.pos++

	cols := c.table.schema.Columns
	if len(record) != len(cols) {
		return table.Row{}, errors.Newf(errors.ErrorTypeData, "csv record has %d fields, want %d", len(record), len(cols)).
			WithDetail(errors.DetailRowKey, key)
	}

	cells := make([]table.FieldValue, len(cols))
	for i, col := range cols {
		cell, err := schema.ParseText(record[i], col.Type, c.table.separator)
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

func generatedNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "col" + strconv.Itoa(i)
	}
	return names
}
