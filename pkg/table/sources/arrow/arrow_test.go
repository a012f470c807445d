package arrow

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knime/knime-dl4j-sub000/pkg/compression"
	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/testutil"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "n", Type: arrow.PrimitiveTypes.Int32},
	{Name: "weights", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "label", Type: arrow.BinaryTypes.String},
	{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond}},
}, nil)

// writeFile writes two record batches of two and one rows.
func writeFile(t *testing.T, w io.Writer) {
	t.Helper()
	mem := memory.NewGoAllocator()
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(testSchema), ipc.WithAllocator(mem))
	require.NoError(t, err)

	batches := [][]struct {
		x       *float64
		n       int32
		weights []float64
		label   string
		at      int64
	}{
		{{ptr(1.5), 1, []float64{0.5, 1}, "a", 1000}, {nil, 2, []float64{2}, "b", 2000}},
		{{ptr(3), 3, nil, "a", 3000}},
	}

	for _, rows := range batches {
		b := array.NewRecordBuilder(mem, testSchema)
		for _, r := range rows {
			if r.x == nil {
				b.Field(0).(*array.Float64Builder).AppendNull()
			} else {
				b.Field(0).(*array.Float64Builder).Append(*r.x)
			}
			b.Field(1).(*array.Int32Builder).Append(r.n)
			lb := b.Field(2).(*array.ListBuilder)
			lb.Append(true)
			vb := lb.ValueBuilder().(*array.Float64Builder)
			for _, v := range r.weights {
				vb.Append(v)
			}
			b.Field(3).(*array.StringBuilder).Append(r.label)
			b.Field(4).(*array.TimestampBuilder).Append(arrow.Timestamp(r.at))
		}
		rec := b.NewRecord()
		require.NoError(t, fw.Write(rec))
		rec.Release()
		b.Release()
	}
	require.NoError(t, fw.Close())
}

func ptr(f float64) *float64 { return &f }

func openTable(t *testing.T, path string) *Table {
	t.Helper()
	cfg := config.NewConfig("arrow-test").Table
	cfg.Format = Format
	cfg.Path = path
	tbl, err := New(testutil.TestContext(t), &cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	return tbl
}

func scan(t *testing.T, tbl table.Table) []table.Row {
	t.Helper()
	ctx := testutil.TestContext(t)
	cur, err := tbl.Open(ctx)
	require.NoError(t, err)
	defer cur.Close()

	var out []table.Row
	for {
		row, err := cur.Next(ctx)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, row)
	}
}

func TestArrowTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.arrow")
	f, err := os.Create(path)
	require.NoError(t, err)
	writeFile(t, f)
	require.NoError(t, f.Close())

	tbl := openTable(t, path)
	assert.Equal(t, []string{"x", "n", "weights", "label", "at"}, tbl.Schema().Names())
	assert.Equal(t, datatype.CollectionOf(datatype.Double), tbl.Schema().Columns[2].Type)
	assert.Equal(t, datatype.Timestamp, tbl.Schema().Columns[4].Type)

	n, err := tbl.RowCount(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rows := scan(t, tbl)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Row0", "Row1", "Row2"}, []string{rows[0].Key, rows[1].Key, rows[2].Key})
	assert.Equal(t, table.Float(1.5), rows[0].Cell(0))
	assert.True(t, rows[1].Cell(0).IsMissing())
	assert.Equal(t, table.Int(3), rows[2].Cell(1))
	assert.Equal(t, table.Collection(datatype.Double, table.Float(0.5), table.Float(1)), rows[0].Cell(2))
	assert.Equal(t, table.Str("b"), rows[1].Cell(3))
	assert.Equal(t, time.UnixMilli(2000).UTC(), rows[1].Cell(4).Value())

	assert.Equal(t, rows, scan(t, tbl))
}

func TestCompressedArrowTable(t *testing.T) {
	var raw bytes.Buffer
	writeFile(t, &raw)

	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, compression.Zstd, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	tbl := openTable(t, testutil.WriteFile(t, "rows.arrow.zst", buf.Bytes()))
	assert.Len(t, scan(t, tbl), 3)
}

func TestUnsupportedType(t *testing.T) {
	_, err := mapType(arrow.BinaryTypes.Binary)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}
