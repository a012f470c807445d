package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/iterator"
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/csv"
	"github.com/knime/knime-dl4j-sub000/pkg/testutil"
)

const flowers = `sepal,petal,species
5.1,1.4,setosa
4.9,1.5,setosa
6.3,4.9,versicolor
5.8,5.1,virginica
6.0,,virginica
`

func sessionConfig(t *testing.T) *config.Config {
	cfg := config.NewConfig("session-test")
	cfg.Table.Path = testutil.WriteFile(t, "flowers.csv", []byte(flowers))
	cfg.Encoding.LabelColumn = "species"
	cfg.Iterator.BatchSize = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSessionClassification(t *testing.T) {
	ctx := testutil.TestContext(t)
	s, err := Open(ctx, sessionConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	it := s.Iterator
	assert.Equal(t, int64(5), it.TotalExamples())
	assert.Equal(t, 2, it.InputLength())
	assert.Equal(t, 3, it.OutputLength())
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, it.Labels())

	var keys []string
	var skipped []string
	stats, err := s.Run(ctx, func(_ context.Context, _ int, b *iterator.Batch) error {
		keys = append(keys, b.Keys...)
		for _, f := range b.Failures {
			skipped = append(skipped, f.Key)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Examples())
	assert.Equal(t, []string{"Row0", "Row1", "Row2", "Row3"}, keys)
	assert.Equal(t, []string{"Row4"}, skipped)
}

func TestSessionFixedVocabularyAndRegression(t *testing.T) {
	ctx := testutil.TestContext(t)

	cfg := sessionConfig(t)
	cfg.Encoding.Vocabulary = []string{"virginica", "versicolor", "setosa"}
	s, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, cfg.Encoding.Vocabulary, s.Iterator.Labels())
	require.NoError(t, s.Close())

	cfg = sessionConfig(t)
	cfg.Encoding.Policy = config.PolicyRegression
	cfg.Encoding.TargetColumns = []string{"petal"}
	cfg.Encoding.LabelColumn = ""
	cfg.Table.Columns = []config.ColumnConfig{
		{Name: "sepal", Type: "double"},
		{Name: "petal", Type: "double"},
		{Name: "species", Type: "double"},
	}
	_, err = Open(ctx, cfg, zaptest.NewLogger(t))
	require.Error(t, err, "species cannot be read as double")
}

func TestSessionAbortPolicy(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := sessionConfig(t)
	cfg.Iterator.FailurePolicy = "abort"

	s, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingValue))
	key, ok := errors.RowKey(err)
	require.True(t, ok)
	assert.Equal(t, "Row4", key)
}

func TestSessionUnknownLabelColumn(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.Encoding.LabelColumn = "colour"

	_, err := Open(testutil.TestContext(t), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
