package pipeline

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/example"
	"github.com/knime/knime-dl4j-sub000/pkg/iterator"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
	"github.com/knime/knime-dl4j-sub000/pkg/table/registry"
)

// Session wires a configured table, converter registry, encoder and batch
// iterator together.
type Session struct {
	Config   *config.Config
	Table    table.Table
	Registry *convert.Registry
	Cache    *convert.Cache
	Iterator *iterator.BatchIterator

	logger *zap.Logger
}

// Open builds a session from a validated configuration. Extensions add
// converters on top of the builtin ones.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, extensions ...convert.Extension) (*Session, error) {
	if log == nil {
		log = logger.Get()
	}
	l := logger.Component(log, "session").With(zap.String("run", cfg.Name))

	tbl, err := registry.Open(ctx, &cfg.Table, log)
	if err != nil {
		return nil, err
	}
	s := &Session{Config: cfg, Table: tbl, logger: l}

	if err := s.build(ctx, log, extensions); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) build(ctx context.Context, log *zap.Logger, extensions []convert.Extension) error {
	cfg := s.Config
	s.Registry = convert.Init(log, append([]convert.Extension{convert.Builtin()}, extensions...)...)

	cache, err := convert.NewCache(cfg.Converters.CacheSize)
	if err != nil {
		return err
	}
	s.Cache = cache

	mode, err := example.ParseMode(cfg.Encoding.Mode)
	if err != nil {
		return err
	}
	failurePolicy, err := iterator.ParseFailurePolicy(cfg.Iterator.FailurePolicy)
	if err != nil {
		return err
	}

	policy, err := s.targetPolicy(ctx, mode)
	if err != nil {
		return err
	}

	ref, err := iterator.ReferenceRow(ctx, s.Table)
	if err != nil {
		return err
	}
	enc, err := example.NewEncoder(example.Config{
		Reference: ref,
		Mode:      mode,
		Policy:    policy,
		Registry:  s.Registry,
		Cache:     s.Cache,
		Columns:   s.Table.Schema().Names(),
		Logger:    log,
	})
	if err != nil {
		return err
	}

	s.Iterator, err = iterator.New(ctx, s.Table, enc, iterator.Options{
		BatchSize:     cfg.Iterator.BatchSize,
		FailurePolicy: failurePolicy,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	s.logger.Info("session ready",
		zap.String("format", cfg.Table.Format),
		zap.String("policy", policy.Kind().String()),
		zap.Int("converters", s.Registry.Len()))
	return nil
}

func (s *Session) targetPolicy(ctx context.Context, mode example.Mode) (example.TargetPolicy, error) {
	enc := s.Config.Encoding
	sch := s.Table.Schema()

	switch strings.ToLower(enc.Policy) {
	case config.PolicyClassification:
		if mode == example.ModeTest && enc.LabelColumn == "" {
			return example.Reconstruction(), nil
		}
		idx := sch.Index(enc.LabelColumn)
		if idx < 0 {
			return example.TargetPolicy{}, errors.Newf(errors.ErrorTypeConfig, "label column %q not found", enc.LabelColumn).
				WithDetail("columns", sch.Names())
		}
		vocab, err := s.vocabulary(ctx, enc)
		if err != nil {
			return example.TargetPolicy{}, err
		}
		return example.Classification(idx, vocab), nil
	case config.PolicyRegression:
		if mode == example.ModeTest && len(enc.TargetColumns) == 0 {
			return example.Reconstruction(), nil
		}
		idx, err := sch.Indices(enc.TargetColumns...)
		if err != nil {
			return example.TargetPolicy{}, errors.Wrap(err, errors.ErrorTypeConfig, "unknown target column")
		}
		return example.Regression(idx...), nil
	case config.PolicyReconstruction:
		return example.Reconstruction(), nil
	default:
		return example.TargetPolicy{}, errors.Newf(errors.ErrorTypeConfig, "unknown target policy %q", enc.Policy)
	}
}

func (s *Session) vocabulary(ctx context.Context, enc config.EncodingConfig) (*example.Vocabulary, error) {
	if len(enc.Vocabulary) > 0 {
		return example.NewVocabulary(enc.Vocabulary...)
	}
	vocab, err := example.BuildVocabulary(ctx, s.Table, enc.LabelColumn, s.Registry, s.Cache)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vocabulary collected",
		zap.String("column", enc.LabelColumn),
		zap.Strings("labels", vocab.Labels()))
	return vocab, nil
}

// Run drives the iterator through the configured epochs.
func (s *Session) Run(ctx context.Context, sink Sink) (Stats, error) {
	return NewRunner(s.Iterator, sink, &Config{Epochs: s.Config.Iterator.Epochs}, s.logger).Run(ctx)
}

// Close releases the iterator and, for tables that hold connections, the
// table.
func (s *Session) Close() error {
	var err error
	if s.Iterator != nil {
		err = s.Iterator.Close()
	}
	if c, ok := s.Table.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
