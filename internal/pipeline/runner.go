// Package pipeline drives batch iterators through training epochs.
//
// The iterator itself has no cancellation primitive. The Runner checks the
// context between Next calls, resets the iterator between epochs, and hands
// each batch to a Sink.
//
// # Basic Usage
//
//	runner := pipeline.NewRunner(it, sink, &pipeline.Config{Epochs: 3}, logger)
//	stats, err := runner.Run(ctx)
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/iterator"
	"github.com/knime/knime-dl4j-sub000/pkg/metrics"
)

// Batches is the part of *iterator.BatchIterator the runner needs.
type Batches interface {
	HasNext() bool
	Next(ctx context.Context) (*iterator.Batch, error)
	Reset(ctx context.Context) error
}

// Sink consumes one batch. Returning an error stops the run.
type Sink func(ctx context.Context, epoch int, batch *iterator.Batch) error

// Config controls a run.
type Config struct {
	// Epochs is the number of full passes, at least 1
	Epochs int
}

// DefaultConfig returns a single epoch configuration.
func DefaultConfig() *Config {
	return &Config{Epochs: 1}
}

// EpochStats summarizes one pass.
type EpochStats struct {
	Epoch      int
	Batches    int
	Examples   int
	Skipped    int
	Duration   time.Duration
	Throughput float64 // examples per second
}

// Stats summarizes a run.
type Stats struct {
	Epochs   []EpochStats
	Duration time.Duration
}

// Examples returns the examples produced over all epochs.
func (s Stats) Examples() int {
	n := 0
	for _, e := range s.Epochs {
		n += e.Examples
	}
	return n
}

// Runner runs epochs over a Batches source.
type Runner struct {
	batches Batches
	sink    Sink
	config  *Config
	logger  *zap.Logger
}

// NewRunner creates a runner. A nil config uses DefaultConfig and a nil
// sink discards batches.
func NewRunner(batches Batches, sink Sink, config *Config, logger *zap.Logger) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	if sink == nil {
		sink = func(context.Context, int, *iterator.Batch) error { return nil }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		batches: batches,
		sink:    sink,
		config:  config,
		logger:  logger.With(zap.String("component", "epoch_runner")),
	}
}

// Run executes the configured epochs. The iterator is reset before every
// epoch after the first. Cancellation is observed between batches; the
// stats gathered so far are returned with the context error.
func (r *Runner) Run(ctx context.Context) (stats Stats, err error) {
	if r.config.Epochs < 1 {
		return Stats{}, errors.Newf(errors.ErrorTypeConfig, "epochs must be at least 1, got %d", r.config.Epochs)
	}

	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	for epoch := 0; epoch < r.config.Epochs; epoch++ {
		if epoch > 0 {
			if err := r.batches.Reset(ctx); err != nil {
				return stats, errors.Wrap(err, errors.TypeOf(err), "reset between epochs failed")
			}
		}

		es, epochErr := r.runEpoch(ctx, epoch)
		stats.Epochs = append(stats.Epochs, es)
		if epochErr != nil {
			return stats, epochErr
		}

		r.logger.Info("epoch completed",
			zap.Int("epoch", epoch),
			zap.Int("batches", es.Batches),
			zap.Int("examples", es.Examples),
			zap.Int("skipped", es.Skipped),
			zap.Duration("duration", es.Duration),
			zap.Float64("examples_per_sec", es.Throughput))
	}
	return stats, nil
}

func (r *Runner) runEpoch(ctx context.Context, epoch int) (EpochStats, error) {
	es := EpochStats{Epoch: epoch}
	tracker := metrics.NewThroughputTracker()
	start := time.Now()

	for r.batches.HasNext() {
		if err := ctx.Err(); err != nil {
			r.logger.Info("run cancelled", zap.Int("epoch", epoch), zap.Int("batches", es.Batches))
			es.Duration = time.Since(start)
			return es, err
		}

		batch, err := r.batches.Next(ctx)
		if err != nil {
			es.Duration = time.Since(start)
			return es, err
		}
		es.Batches++
		es.Examples += batch.Len()
		es.Skipped += len(batch.Failures)
		tracker.Increment(int64(batch.Len()))

		if err := r.sink(ctx, epoch, batch); err != nil {
			es.Duration = time.Since(start)
			return es, errors.Wrap(err, errors.TypeOf(err), "batch sink failed")
		}
	}
	es.Throughput = tracker.GetAndReset()
	es.Duration = time.Since(start)
	return es, nil
}
