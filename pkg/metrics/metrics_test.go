package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(RowsEncoded.WithLabelValues("train", "regression"))
	RowsEncoded.WithLabelValues("train", "regression").Add(3)
	after := testutil.ToFloat64(RowsEncoded.WithLabelValues("train", "regression"))
	assert.Equal(t, before+3, after)
}

func TestThroughputTracker(t *testing.T) {
	tr := NewThroughputTracker()
	tr.Increment(10)
	tr.Increment(5)
	assert.Equal(t, int64(15), tr.Count())

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, tr.GetAndReset(), 0.0)
	assert.Equal(t, int64(0), tr.Count())
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	assert.Equal(t, "op", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
