// Package dl4jbatch turns tabular rows into fixed-width numeric training
// examples and groups them into feature/target batches.
//
// Every cell is converted through a registry of typed converters selected by
// source and destination type, with the resolved converter for each pair
// kept in a small LRU cache. An encoder assembles a row into a feature vector
// and a target vector under one of three target policies (classification,
// regression, reconstruction), and a batch iterator walks a table in order,
// skipping or aborting on rows that fail to encode.
//
// # Quick Start
//
// Encode a CSV file into batches of 64 examples:
//
//	import (
//	    "github.com/knime/knime-dl4j-sub000/internal/pipeline"
//	    "github.com/knime/knime-dl4j-sub000/pkg/config"
//	    _ "github.com/knime/knime-dl4j-sub000/pkg/table/sources"
//	)
//
//	cfg := config.NewConfig("iris")
//	cfg.Table.Path = "iris.csv"
//	cfg.Encoding.LabelColumn = "species"
//	cfg.Iterator.BatchSize = 64
//
//	s, err := pipeline.Open(ctx, cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for s.Iterator.HasNext() {
//	    batch, err := s.Iterator.Next(ctx)
//	    ...
//	}
//
// # Key Packages
//
//	pkg/datatype     - Type descriptors, signatures and compatibility
//	pkg/table        - Rows, field values and the table contract
//	pkg/table/sources - CSV, JSON lines, Arrow IPC, Avro and SQL tables
//	pkg/convert      - Converter registry, builtin converters and the LRU cache
//	pkg/example      - Target policies, label vocabulary and the row encoder
//	pkg/iterator     - Batch iterator with reset and per-row failure policy
//	pkg/ndarray      - Dense matrices and their Arrow representation
//	pkg/config       - YAML configuration with environment substitution
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// The dl4jbatch command in cmd/dl4jbatch exposes inspect, drain, export and
// converters subcommands over a YAML run configuration.
package dl4jbatch
