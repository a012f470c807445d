// Package avro reads Avro object container files as restartable tables.
//
// The writer schema must be a record. Its fields map to columns:
// primitives to the builtin types, arrays to collections, timestamp logical
// types to timestamp and ["null", T] unions to a nullable T.
package avro

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
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
const Format = "avro"

func init() {
	registry.MustRegister(Format, func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
		return New(ctx, cfg, log)
	})
}

// Table is an Avro OCF file.
type Table struct {
	path   string
	alg    compression.Algorithm
	schema table.Schema
	rows   int64
	logger *zap.Logger
}

// New maps the writer schema and counts the records.
func New(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	t := &Table{
		path:   cfg.Path,
		alg:    alg,
		logger: logger.Component(log, "avro_table").With(zap.String("path", cfg.Path)),
	}

	rc, ocf, err := t.reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if t.schema, err = mapSchema(ocf.Codec().Schema()); err != nil {
		return nil, err
	}
	if declared, ok := cfg.Schema(); ok {
		t.schema = declared
	}

	for ocf.Scan() {
		if t.rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := ocf.Read(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed avro record").
				WithDetail(errors.DetailRowKey, table.DefaultRowKey(t.rows))
		}
		t.rows++
	}
	if err := ocf.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to scan avro file")
	}

	t.logger.Info("avro table initialized",
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
	rc, ocf, err := t.reader()
	if err != nil {
		return nil, err
	}
	return &cursor{table: t, file: rc, ocf: ocf}, nil
}

func (t *Table) reader() (io.ReadCloser, *goavro.OCFReader, error) {
	rc, err := compression.Open(t.path, t.alg)
	if err != nil {
		return nil, nil, err
	}
	ocf, err := goavro.NewOCFReader(rc)
	if err != nil {
		rc.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read avro header").
			WithDetail("path", t.path)
	}
	return rc, ocf, nil
}

type cursor struct {
	table  *Table
	file   io.ReadCloser
	ocf    *goavro.OCFReader
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
	if !c.ocf.Scan() {
		if err := c.ocf.Err(); err != nil {
			return table.Row{}, errors.Wrap(err, errors.ErrorTypeData, "failed to scan avro file").
				WithDetail(errors.DetailRowKey, key)
		}
		return table.Row{}, io.EOF
	}
	datum, err := c.ocf.Read()
	if err != nil {
		return table.Row{}, errors.Wrap(err, errors.ErrorTypeData, "malformed avro record").
			WithDetail(errors.DetailRowKey, key)
	}
	c.pos++

	record, ok := datum.(map[string]interface{})
	if !ok {
		return table.Row{}, errors.Newf(errors.ErrorTypeData, "avro datum is %T, want record", datum).
			WithDetail(errors.DetailRowKey, key)
	}

	cols := c.table.schema.Columns
	cells := make([]table.FieldValue, len(cols))
	for i, col := range cols {
		cell, err := schema.FromNative(unwrapUnion(record[col.Name]), col.Type)
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

// unwrapUnion replaces goavro's {"type": value} union encoding with the
// value itself.
func unwrapUnion(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		if len(x) == 1 {
			for _, inner := range x {
				return unwrapUnion(inner)
			}
		}
		return x
	case []interface{}:
		for i := range x {
			x[i] = unwrapUnion(x[i])
		}
		return x
	default:
		return v
	}
}

type recordSchema struct {
	Type   string        `json:"type"`
	Fields []fieldSchema `json:"fields"`
}

type fieldSchema struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type complexSchema struct {
	Type        string          `json:"type"`
	Items       json.RawMessage `json:"items"`
	LogicalType string          `json:"logicalType"`
}

func mapSchema(text string) (table.Schema, error) {
	var rs recordSchema
	if err := json.Unmarshal([]byte(text), &rs); err != nil {
		return table.Schema{}, errors.Wrap(err, errors.ErrorTypeData, "invalid avro schema")
	}
	if rs.Type != "record" {
		return table.Schema{}, errors.Newf(errors.ErrorTypeCapability, "avro schema of type %q is not a record", rs.Type)
	}

	cols := make([]table.Column, len(rs.Fields))
	for i, f := range rs.Fields {
		t, err := mapType(f.Type)
		if err != nil {
			return table.Schema{}, errors.Annotate(err, errors.DetailColumn, f.Name)
		}
		cols[i] = table.Column{Name: f.Name, Type: t}
	}
	return table.Schema{Columns: cols}, nil
}

func mapType(raw json.RawMessage) (datatype.DataType, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return primitive(name)
	}

	var union []json.RawMessage
	if err := json.Unmarshal(raw, &union); err == nil {
		var branches []json.RawMessage
		for _, b := range union {
			if string(b) != `"null"` {
				branches = append(branches, b)
			}
		}
		if len(branches) != 1 {
			return datatype.DataType{}, errors.Newf(errors.ErrorTypeCapability, "avro union %s is not supported", raw)
		}
		return mapType(branches[0])
	}

	var cs complexSchema
	if err := json.Unmarshal(raw, &cs); err != nil {
		return datatype.DataType{}, errors.Wrap(err, errors.ErrorTypeData, "invalid avro type")
	}
	switch {
	case cs.Type == "array":
		elem, err := mapType(cs.Items)
		if err != nil {
			return datatype.DataType{}, err
		}
		return datatype.CollectionOf(elem), nil
	case cs.LogicalType == "timestamp-millis" || cs.LogicalType == "timestamp-micros":
		return datatype.Timestamp, nil
	default:
		return primitive(cs.Type)
	}
}

func primitive(name string) (datatype.DataType, error) {
	switch name {
	case "boolean":
		return datatype.Boolean, nil
	case "int":
		return datatype.Int, nil
	case "long":
		return datatype.Long, nil
	case "float", "double":
		return datatype.Double, nil
	case "string":
		return datatype.String, nil
	default:
		return datatype.DataType{}, errors.Newf(errors.ErrorTypeCapability, "avro type %q is not supported", name)
	}
}
