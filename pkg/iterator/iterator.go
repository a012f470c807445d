// Package iterator streams encoded examples out of a table in fixed-size
// batches.
//
// A BatchIterator owns one cursor over its table. Next pulls up to
// BatchSize rows, encodes each with an example.Encoder and stacks the
// results into feature and target matrices. Reset closes the cursor and
// reopens the table from the first row; the encoder, and so the vector
// lengths, are kept.
//
// Rows that fail to encode still advance the cursor. Under FailSkip they are
// logged with their row key and reported in Batch.Failures; under FailAbort
// Next returns the first failure. Whenever Next returns an error, from the
// encoder or from the row stream, it also returns the partial batch of rows
// encoded before the failure, so no consumed row is lost silently.
//
// If the table cannot be reopened by Reset, HasNext is false and Next
// returns the open error until a later Reset succeeds.
//
// A BatchIterator is not safe for concurrent use.
package iterator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/example"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/metrics"
	"github.com/knime/knime-dl4j-sub000/pkg/ndarray"
	"github.com/knime/knime-dl4j-sub000/pkg/observability"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// DefaultBatchSize is used when Options.BatchSize is zero.
const DefaultBatchSize = 32

// FailurePolicy controls what Next does with a row that fails to encode.
type FailurePolicy int

const (
	// FailSkip logs the failure and leaves the row out of the batch
	FailSkip FailurePolicy = iota
	// FailAbort returns the failure from Next
	FailAbort
)

// String implements fmt.Stringer
func (p FailurePolicy) String() string {
	switch p {
	case FailSkip:
		return "skip"
	case FailAbort:
		return "abort"
	default:
		return fmt.Sprintf("failure_policy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "skip" or "abort".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return FailSkip, nil
	case "abort":
		return FailAbort, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown failure policy %q", s)
	}
}

// Options configures a BatchIterator.
type Options struct {
	BatchSize     int
	FailurePolicy FailurePolicy
	Logger        *zap.Logger
}

// Failure is a row left out of a batch.
type Failure struct {
	Key string
	Err error
}

// Batch is the result of one Next call. Row i of Features and Targets
// belongs to Keys[i].
type Batch struct {
	Features *ndarray.Matrix
	Targets  *ndarray.Matrix
	Keys     []string
	Failures []Failure
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return len(b.Keys) }

// BatchIterator produces batches of examples from a table.
type BatchIterator struct {
	tbl     table.Table
	encoder *example.Encoder
	opts    Options
	total   int64

	cursor    int64
	rows      table.Cursor
	openErr   error
	exhausted bool
	closed    bool

	logger *zap.Logger
}

// ReferenceRow returns the first row of tbl, used to fix encoder lengths.
func ReferenceRow(ctx context.Context, tbl table.Table) (table.Row, error) {
	cur, err := tbl.Open(ctx)
	if err != nil {
		return table.Row{}, err
	}
	defer cur.Close()

	row, err := cur.Next(ctx)
	if err == io.EOF {
		return table.Row{}, errors.New(errors.ErrorTypeValidation, "table has no rows to derive the example shape from")
	}
	if err != nil {
		return table.Row{}, err
	}
	return row, nil
}

// New opens tbl and returns an iterator positioned at the first row.
func New(ctx context.Context, tbl table.Table, enc *example.Encoder, opts Options) (*BatchIterator, error) {
	if tbl == nil || enc == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "table and encoder are required")
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize < 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "batch size must be positive, got %d", opts.BatchSize)
	}

	total, err := tbl.RowCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "cannot determine table size")
	}

	it := &BatchIterator{
		tbl:     tbl,
		encoder: enc,
		opts:    opts,
		total:   total,
		logger:  logger.Component(opts.Logger, "batch_iterator"),
	}
	if err := it.open(ctx); err != nil {
		return nil, err
	}

	it.logger.Info("iterator created",
		zap.Int64("total_examples", total),
		zap.Int("batch_size", opts.BatchSize),
		zap.Int("input_length", enc.FeatureLength()),
		zap.Int("output_length", enc.TargetLength()),
		zap.String("mode", enc.Mode().String()),
		zap.String("failure_policy", opts.FailurePolicy.String()))
	return it, nil
}

// HasNext reports whether rows remain relative to the declared table size.
func (it *BatchIterator) HasNext() bool {
	return !it.closed && it.rows != nil && !it.exhausted && it.cursor < it.total
}

// Next returns the next batch of at most BatchSize examples. Calling Next
// when HasNext is false returns an exhausted error.
func (it *BatchIterator) Next(ctx context.Context) (batch *Batch, err error) {
	if !it.closed && it.rows == nil {
		return nil, errors.Wrap(it.openErr, errors.TypeOf(it.openErr), "row stream is not open, Reset to reopen")
	}
	if !it.HasNext() {
		return nil, errors.New(errors.ErrorTypeExhausted, "no more examples").
			WithDetail("cursor", it.cursor).
			WithDetail("total", it.total)
	}

	mode := it.encoder.Mode().String()
	ctx, span := observability.StartSpan(ctx, "iterator.next",
		attribute.Int64("cursor", it.cursor),
		attribute.Int("batch_size", it.opts.BatchSize))
	timer := metrics.NewTimer("next")
	defer func() {
		if batch != nil {
			span.SetAttributes(attribute.Int("examples", batch.Len()), attribute.Int("failures", len(batch.Failures)))
		}
		observability.EndSpan(span, err)
		metrics.BatchLatency.WithLabelValues(mode).Observe(timer.Stop().Seconds())
	}()

	n := it.total - it.cursor
	if n > int64(it.opts.BatchSize) {
		n = int64(it.opts.BatchSize)
	}

	features := make([][]float64, 0, n)
	targets := make([][]float64, 0, n)
	batch = &Batch{Keys: make([]string, 0, n)}

	for i := int64(0); i < n; i++ {
		row, err := it.rows.Next(ctx)
		if err == io.EOF {
			it.exhausted = true
			it.logger.Warn("row stream ended before declared size",
				zap.Int64("cursor", it.cursor),
				zap.Int64("total_examples", it.total))
			break
		}
		if err != nil {
			return it.partial(batch, features, targets), err
		}
		it.cursor++

		ex, encErr := it.encoder.Encode(row)
		if encErr != nil {
			metrics.RowsSkipped.WithLabelValues(mode, string(errors.TypeOf(encErr))).Inc()
			if it.opts.FailurePolicy == FailAbort {
				return it.partial(batch, features, targets), encErr
			}
			it.logger.Warn("skipping row that failed to encode",
				zap.String("row_key", row.Key),
				zap.String("reason", string(errors.TypeOf(encErr))),
				zap.Error(encErr))
			batch.Failures = append(batch.Failures, Failure{Key: row.Key, Err: encErr})
			continue
		}

		features = append(features, ex.Features)
		targets = append(targets, ex.Target)
		batch.Keys = append(batch.Keys, ex.Key)
	}

	metrics.BatchesProduced.WithLabelValues(mode).Inc()
	return it.partial(batch, features, targets), nil
}

// partial stacks the rows encoded so far into batch.
func (it *BatchIterator) partial(batch *Batch, features, targets [][]float64) *Batch {
	batch.Features = stack(features, it.encoder.FeatureLength())
	batch.Targets = stack(targets, it.encoder.TargetLength())
	return batch
}

// Reset closes the row stream and reopens it at the first row.
func (it *BatchIterator) Reset(ctx context.Context) (err error) {
	if it.closed {
		return errors.New(errors.ErrorTypeValidation, "iterator is closed")
	}
	ctx, span := observability.StartSpan(ctx, "iterator.reset", attribute.Int64("cursor", it.cursor))
	defer func() { observability.EndSpan(span, err) }()

	if err := it.closeRows(); err != nil {
		it.logger.Warn("closing row stream on reset", zap.Error(err))
	}
	it.cursor = 0
	it.exhausted = false
	if err := it.open(ctx); err != nil {
		it.logger.Error("cannot reopen row stream, iterator unusable until the next reset", zap.Error(err))
		return err
	}

	metrics.IteratorResets.Inc()
	it.logger.Debug("iterator reset")
	return nil
}

// Drain would return n examples regardless of the batch size. It is not
// supported.
func (it *BatchIterator) Drain(ctx context.Context, n int) (*Batch, error) {
	return nil, errors.Newf(errors.ErrorTypeCapability, "draining %d examples is not supported, use Next", n)
}

// TotalExamples returns the declared number of rows.
func (it *BatchIterator) TotalExamples() int64 { return it.total }

// InputLength returns the feature vector length.
func (it *BatchIterator) InputLength() int { return it.encoder.FeatureLength() }

// OutputLength returns the target vector length.
func (it *BatchIterator) OutputLength() int { return it.encoder.TargetLength() }

// Cursor returns the number of rows consumed since the last reset.
func (it *BatchIterator) Cursor() int64 { return it.cursor }

// BatchSize returns the configured batch size.
func (it *BatchIterator) BatchSize() int { return it.opts.BatchSize }

// Labels returns the classification labels, or nil for other policies.
func (it *BatchIterator) Labels() []string {
	return it.encoder.Vocabulary().Labels()
}

// Encoder returns the row encoder.
func (it *BatchIterator) Encoder() *example.Encoder { return it.encoder }

// Close releases the row stream. It is safe to call more than once.
func (it *BatchIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.closeRows()
}

func (it *BatchIterator) open(ctx context.Context) error {
	rows, err := it.tbl.Open(ctx)
	if err != nil {
		it.openErr = errors.Wrap(err, errors.TypeOf(err), "cannot open row stream")
		return it.openErr
	}
	it.rows, it.openErr = rows, nil
	return nil
}

func (it *BatchIterator) closeRows() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}

func stack(rows [][]float64, width int) *ndarray.Matrix {
	m := ndarray.NewMatrix(len(rows), width)
	for i, r := range rows {
		// the encoder guarantees width, SetRow panics otherwise
		m.SetRow(i, r)
	}
	return m
}
