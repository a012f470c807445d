package compression

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []byte(strings.Repeat("a,b,label\n1.0,2.0,cat\n3.0,4.0,dog\n", 50))

func TestRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, Default)
			require.NoError(t, err)
			_, err = w.Write(sample)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(&buf, alg)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, sample, got)
		})
	}
}

func TestDetectAlgorithm(t *testing.T) {
	assert.Equal(t, Gzip, DetectAlgorithm("train.csv.gz"))
	assert.Equal(t, Zstd, DetectAlgorithm("x.JSONL.ZST"))
	assert.Equal(t, LZ4, DetectAlgorithm("x.arrow.lz4"))
	assert.Equal(t, None, DetectAlgorithm("x.csv"))
	assert.Equal(t, "train.csv", TrimExtension("train.csv.gz"))
	assert.Equal(t, "train.csv", TrimExtension("train.csv"))
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, Auto, a)
	a, err = ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)
}

func TestOpenDetects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := NewWriter(f, Zstd, Fastest)
	require.NoError(t, err)
	_, err = w.Write(sample)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	rc, err := Open(path, Auto)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, sample, got)

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"), Auto)
	assert.Error(t, err)
}
