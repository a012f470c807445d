package avro

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/testutil"
)

const testSchema = `{
  "type": "record",
  "name": "Measurement",
  "fields": [
    {"name": "x", "type": ["null", "double"]},
    {"name": "n", "type": "int"},
    {"name": "weights", "type": {"type": "array", "items": "double"}},
    {"name": "label", "type": "string"},
    {"name": "at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

func writeOCF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.avro")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Schema: testSchema})
	require.NoError(t, err)

	records := []interface{}{
		map[string]interface{}{
			"x": goavro.Union("double", 1.5), "n": int32(1),
			"weights": []interface{}{0.5, 1.0}, "label": "a", "at": time.UnixMilli(1000).UTC(),
		},
		map[string]interface{}{
			"x": nil, "n": int32(2),
			"weights": []interface{}{2.0}, "label": "b", "at": time.UnixMilli(2000).UTC(),
		},
	}
	require.NoError(t, w.Append(records))
	return path
}

func TestAvroTable(t *testing.T) {
	cfg := config.NewConfig("avro-test").Table
	cfg.Format = Format
	cfg.Path = writeOCF(t)

	ctx := testutil.TestContext(t)
	tbl, err := New(ctx, &cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	s := tbl.Schema()
	assert.Equal(t, []string{"x", "n", "weights", "label", "at"}, s.Names())
	assert.Equal(t, datatype.Double, s.Columns[0].Type)
	assert.Equal(t, datatype.Int, s.Columns[1].Type)
	assert.Equal(t, datatype.CollectionOf(datatype.Double), s.Columns[2].Type)

	n, err := tbl.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for pass := 0; pass < 2; pass++ {
		cur, err := tbl.Open(ctx)
		require.NoError(t, err)

		first, err := cur.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Row0", first.Key)
		assert.Equal(t, table.Float(1.5), first.Cell(0))
		assert.Equal(t, table.Int(1), first.Cell(1))
		assert.Equal(t, table.Collection(datatype.Double, table.Float(0.5), table.Float(1)), first.Cell(2))

		second, err := cur.Next(ctx)
		require.NoError(t, err)
		assert.True(t, second.Cell(0).IsMissing())
		assert.Equal(t, table.Str("b"), second.Cell(3))

		_, err = cur.Next(ctx)
		assert.Equal(t, io.EOF, err)
		require.NoError(t, cur.Close())
	}
}

func TestMapSchema(t *testing.T) {
	_, err := mapSchema(`{"type": "enum", "name": "E", "symbols": ["A"]}`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	_, err = mapSchema(`{"type": "record", "name": "R", "fields": [{"name": "u", "type": ["int", "string"]}]}`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	s, err := mapSchema(`{"type": "record", "name": "R", "fields": [{"name": "v", "type": {"type": "array", "items": ["null", "long"]}}]}`)
	require.NoError(t, err)
	assert.Equal(t, datatype.CollectionOf(datatype.Long), s.Columns[0].Type)
}

func TestUnwrapUnion(t *testing.T) {
	assert.Equal(t, 1.5, unwrapUnion(map[string]interface{}{"double": 1.5}))
	assert.Nil(t, unwrapUnion(nil))
	assert.Equal(t, []interface{}{int64(1), nil}, unwrapUnion([]interface{}{map[string]interface{}{"long": int64(1)}, nil}))
}
