// Package sql reads the result of a query as a restartable table.
//
// Supported drivers are "pgx" (aliases "postgres" and "postgresql") and
// "mysql". Every Open reruns the query; the size is taken once with a
// COUNT(*) over the query when the table is created.
package sql

import (
	"context"
	"database/sql"
	"io"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/schema"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/table/registry"
)

// Format is the registry name of this source.
const Format = "sql"

func init() {
	registry.MustRegister(Format, func(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (table.Table, error) {
		return New(ctx, cfg, log)
	})
}

// Table is a query result. Close releases the connection pool.
type Table struct {
	db     *sql.DB
	query  string
	schema table.Schema
	rows   int64
	logger *zap.Logger
}

// New connects, probes the query for its column types and counts its rows.
func New(ctx context.Context, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	driver := DriverName(cfg.Driver)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database connection").
			WithDetail("driver", driver)
	}
	t, err := NewWithDB(ctx, db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// NewWithDB is like New over an existing connection pool, which the table
// then owns.
func NewWithDB(ctx context.Context, db *sql.DB, cfg *config.TableConfig, log *zap.Logger) (*Table, error) {
	query := strings.TrimRight(strings.TrimSpace(cfg.Query), ";")
	if query == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "query is required")
	}
	t := &Table{
		db:     db,
		query:  query,
		logger: logger.Component(log, "sql_table"),
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "database ping failed")
	}

	if declared, ok := cfg.Schema(); ok {
		t.schema = declared
	} else if err := t.probe(ctx); err != nil {
		return nil, err
	}

	if err := db.QueryRowContext(ctx, CountQuery(query)).Scan(&t.rows); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to count query rows")
	}

	t.logger.Info("sql table initialized",
		zap.Int64("rows", t.rows),
		zap.Int("columns", t.schema.Len()))
	return t, nil
}

// DriverName resolves driver aliases to registered database/sql drivers.
func DriverName(name string) string {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return "pgx"
	default:
		return strings.ToLower(name)
	}
}

// CountQuery wraps query in a COUNT(*).
func CountQuery(query string) string {
	return "SELECT COUNT(*) FROM (" + query + ") AS dl4j_count"
}

// ProbeQuery wraps query so that it returns column metadata without rows.
func ProbeQuery(query string) string {
	return "SELECT * FROM (" + query + ") AS dl4j_probe LIMIT 0"
}

func (t *Table) probe(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, ProbeQuery(t.query))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to probe query columns")
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read column types")
	}
	cols := make([]table.Column, len(types))
	for i, ct := range types {
		cols[i] = table.Column{Name: ct.Name(), Type: MapType(ct.DatabaseTypeName())}
		t.logger.Debug("column mapped",
			zap.String("column", ct.Name()),
			zap.String("database_type", ct.DatabaseTypeName()),
			zap.String("type", cols[i].Type.String()))
	}
	t.schema = table.Schema{Columns: cols}
	return rows.Err()
}

// MapType maps a driver reported type name to a data type. Unknown types
// are read as strings.
func MapType(dbType string) datatype.DataType {
	switch strings.ToUpper(dbType) {
	case "BOOL", "BOOLEAN", "BIT":
		return datatype.Boolean
	case "INT2", "INT4", "SMALLINT", "INT", "INTEGER", "MEDIUMINT", "TINYINT", "SERIAL":
		return datatype.Int
	case "INT8", "BIGINT", "BIGSERIAL", "UNSIGNED INT":
		return datatype.Long
	case "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT", "NUMERIC", "DECIMAL":
		return datatype.Double
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return datatype.Timestamp
	default:
		return datatype.String
	}
}

// Schema implements table.Table
func (t *Table) Schema() table.Schema { return t.schema }

// RowCount implements table.Table
func (t *Table) RowCount(context.Context) (int64, error) { return t.rows, nil }

// Open implements table.Table
func (t *Table) Open(ctx context.Context) (table.Cursor, error) {
	rows, err := t.db.QueryContext(ctx, t.query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to run query")
	}
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
	}
	if len(names) != t.schema.Len() {
		rows.Close()
		return nil, errors.Newf(errors.ErrorTypeQuery, "query returns %d columns, schema has %d", len(names), t.schema.Len())
	}
	return &cursor{table: t, rows: rows, values: make([]interface{}, len(names))}, nil
}

// Close closes the connection pool.
func (t *Table) Close() error {
	return t.db.Close()
}

type cursor struct {
	table  *Table
	rows   *sql.Rows
	values []interface{}
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
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return table.Row{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read query result").
				WithDetail(errors.DetailRowKey, key)
		}
		return table.Row{}, io.EOF
	}

	ptrs := make([]interface{}, len(c.values))
	for i := range c.values {
		ptrs[i] = &c.values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return table.Row{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row").
			WithDetail(errors.DetailRowKey, key)
	}
	c.pos++

	cols := c.table.schema.Columns
	cells := make([]table.FieldValue, len(cols))
	for i, col := range cols {
		v := c.values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		var (
			cell table.FieldValue
			err  error
		)
		// text protocol values arrive as strings
		if s, ok := v.(string); ok && col.Type != datatype.String {
			cell, err = schema.ParseText(s, col.Type, schema.DefaultCollectionSeparator)
		} else {
			cell, err = schema.FromNative(v, col.Type)
		}
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
	return c.rows.Close()
}
