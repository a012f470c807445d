// Package config defines the configuration of a batch run.
//
// A Config is organised into sections that mirror the pipeline:
//
//   - Table: where rows come from and how cells are typed
//   - Encoding: mode, target policy and label vocabulary
//   - Iterator: batch size and per-row failure policy
//   - Converters: converter cache sizing
//   - Observability: log level and tracing
//
// Example usage:
//
//	cfg := config.NewConfig("iris")
//	cfg.Table.Format = "csv"
//	cfg.Table.Path = "iris.csv"
//	cfg.Encoding.LabelColumn = "species"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"strings"

	"github.com/knime/knime-dl4j-sub000/pkg/compression"
	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/example"
	"github.com/knime/knime-dl4j-sub000/pkg/iterator"
	"github.com/knime/knime-dl4j-sub000/pkg/observability"
	"github.com/knime/knime-dl4j-sub000/pkg/schema"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// Target policy names accepted in Encoding.Policy.
const (
	PolicyClassification = "classification"
	PolicyRegression     = "regression"
	PolicyReconstruction = "reconstruction"
)

// Config is the configuration of a single batch run.
type Config struct {
	// Name identifies the run in logs and traces
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	Table         TableConfig         `yaml:"table" json:"table"`
	Encoding      EncodingConfig      `yaml:"encoding" json:"encoding"`
	Iterator      IteratorConfig      `yaml:"iterator" json:"iterator"`
	Converters    ConverterConfig     `yaml:"converters" json:"converters"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// TableConfig selects and configures the row source.
type TableConfig struct {
	// Format names a registered table source: csv, jsonl, arrow, avro or sql
	Format string `yaml:"format" json:"format"`
	// Path is the input file for file based formats
	Path string `yaml:"path" json:"path"`
	// Compression is an algorithm name or "auto" to detect from the extension
	Compression string `yaml:"compression" json:"compression"`

	// Columns declares the schema; inferred from a sample when empty
	Columns    []ColumnConfig `yaml:"columns,omitempty" json:"columns,omitempty"`
	SampleSize int            `yaml:"sample_size" json:"sample_size"`

	// CSV options
	HasHeader           bool   `yaml:"has_header" json:"has_header"`
	Delimiter           string `yaml:"delimiter" json:"delimiter"`
	CollectionSeparator string `yaml:"collection_separator" json:"collection_separator"`

	// SQL options
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Query  string `yaml:"query" json:"query"`
}

// ColumnConfig declares one column of the table schema.
type ColumnConfig struct {
	Name string `yaml:"name" json:"name"`
	// Type is a type signature such as "double" or "collection<int>"
	Type string `yaml:"type" json:"type"`
}

// EncodingConfig configures the row encoder.
type EncodingConfig struct {
	// Mode is "train" or "test"
	Mode string `yaml:"mode" json:"mode"`
	// Policy is classification, regression or reconstruction
	Policy string `yaml:"policy" json:"policy"`
	// LabelColumn names the classification label column
	LabelColumn string `yaml:"label_column" json:"label_column"`
	// TargetColumns names the regression target columns
	TargetColumns []string `yaml:"target_columns,omitempty" json:"target_columns,omitempty"`
	// Vocabulary fixes the label order; collected from the table when empty
	Vocabulary []string `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"`
}

// IteratorConfig configures batch production.
type IteratorConfig struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// FailurePolicy is "skip" or "abort"
	FailurePolicy string `yaml:"failure_policy" json:"failure_policy"`
	Epochs        int    `yaml:"epochs" json:"epochs"`
}

// ConverterConfig configures type conversion.
type ConverterConfig struct {
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel    string                      `yaml:"log_level" json:"log_level"`
	LogEncoding string                      `yaml:"log_encoding" json:"log_encoding"`
	MetricsAddr string                      `yaml:"metrics_addr" json:"metrics_addr"`
	Tracing     observability.TracingConfig `yaml:"tracing" json:"tracing"`
}

// NewConfig creates a configuration with defaults for every section.
func NewConfig(name string) *Config {
	tracing := observability.DefaultTracingConfig()
	tracing.ServiceName = name

	return &Config{
		Name:    name,
		Version: "1.0.0",
		Table: TableConfig{
			Format:              "csv",
			Compression:         string(compression.Auto),
			SampleSize:          schema.DefaultSampleSize,
			HasHeader:           true,
			Delimiter:           ",",
			CollectionSeparator: schema.DefaultCollectionSeparator,
		},
		Encoding: EncodingConfig{
			Mode:   example.ModeTrain.String(),
			Policy: PolicyClassification,
		},
		Iterator: IteratorConfig{
			BatchSize:     iterator.DefaultBatchSize,
			FailurePolicy: iterator.FailSkip.String(),
			Epochs:        1,
		},
		Converters: ConverterConfig{
			CacheSize: convert.DefaultCacheSize,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
			Tracing:     tracing,
		},
	}
}

// Validate checks required fields and value ranges. Every failure is an
// ErrorTypeConfig error.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if err := c.Table.validate(); err != nil {
		return err
	}
	if err := c.Encoding.validate(); err != nil {
		return err
	}
	if c.Iterator.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "iterator.batch_size must be positive")
	}
	if c.Iterator.Epochs <= 0 {
		return errors.New(errors.ErrorTypeConfig, "iterator.epochs must be positive")
	}
	if _, err := iterator.ParseFailurePolicy(c.Iterator.FailurePolicy); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "iterator.failure_policy")
	}
	if c.Converters.CacheSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "converters.cache_size must be positive")
	}
	return nil
}

func (t *TableConfig) validate() error {
	if t.Format == "" {
		return errors.New(errors.ErrorTypeConfig, "table.format is required")
	}
	if t.Format == "sql" {
		if t.Driver == "" || t.DSN == "" || t.Query == "" {
			return errors.New(errors.ErrorTypeConfig, "table.driver, table.dsn and table.query are required for sql tables")
		}
	} else if t.Path == "" {
		return errors.Newf(errors.ErrorTypeConfig, "table.path is required for %s tables", t.Format)
	}
	if _, err := compression.ParseAlgorithm(t.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "table.compression")
	}
	if t.Format == "csv" && len([]rune(t.Delimiter)) != 1 {
		return errors.Newf(errors.ErrorTypeConfig, "table.delimiter must be a single character, got %q", t.Delimiter)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if col.Name == "" {
			return errors.New(errors.ErrorTypeConfig, "table.columns entries need a name")
		}
		if seen[col.Name] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if _, err := datatype.Parse(col.Type); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "column "+col.Name)
		}
	}
	return nil
}

func (e *EncodingConfig) validate() error {
	mode, err := example.ParseMode(e.Mode)
	if err != nil {
		return err
	}
	switch strings.ToLower(e.Policy) {
	case PolicyClassification:
		if e.LabelColumn == "" && mode == example.ModeTrain {
			return errors.New(errors.ErrorTypeConfig, "encoding.label_column is required for classification")
		}
	case PolicyRegression:
		if len(e.TargetColumns) == 0 && mode == example.ModeTrain {
			return errors.New(errors.ErrorTypeConfig, "encoding.target_columns is required for regression")
		}
	case PolicyReconstruction:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown target policy %q", e.Policy)
	}
	return nil
}

// Schema returns the declared columns as a table schema, or false when the
// schema should be inferred. It expects a validated config.
func (t *TableConfig) Schema() (table.Schema, bool) {
	if len(t.Columns) == 0 {
		return table.Schema{}, false
	}
	cols := make([]table.Column, 0, len(t.Columns))
	for _, col := range t.Columns {
		cols = append(cols, table.Column{Name: col.Name, Type: datatype.MustParse(col.Type)})
	}
	return table.Schema{Columns: cols}, true
}
