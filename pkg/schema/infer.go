// Package schema infers column types from sample values and parses raw
// cells into typed table values.
package schema

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// DefaultSampleSize is the number of rows sources read for inference.
const DefaultSampleSize = 1000

// Inferred is the inference result for one column.
type Inferred struct {
	Type       datatype.DataType
	Nullable   bool
	Confidence float64
}

// Inferer detects column types from sample values.
type Inferer struct {
	logger *zap.Logger

	timestampPatterns []*regexp.Regexp

	sampleSize          int
	confidenceThreshold float64
}

// NewInferer creates an inferer with the default sample size.
func NewInferer(log *zap.Logger) *Inferer {
	return &Inferer{
		logger:              logger.Component(log, "type_inference"),
		sampleSize:          DefaultSampleSize,
		confidenceThreshold: 0.95,
		timestampPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), // ISO 8601
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), // SQL timestamp
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),                  // date
		},
	}
}

// SampleSize returns how many rows should be sampled.
func (e *Inferer) SampleSize() int { return e.sampleSize }

// InferSchema infers one column per name from row-major samples. Columns
// without any non-null sample become string.
func (e *Inferer) InferSchema(names []string, rows [][]interface{}) table.Schema {
	s := table.Schema{Columns: make([]table.Column, len(names))}
	for j, name := range names {
		values := make([]interface{}, 0, len(rows))
		for _, r := range rows {
			if j < len(r) {
				values = append(values, r[j])
			} else {
				values = append(values, nil)
			}
		}
		inferred := e.InferType(values)
		s.Columns[j] = table.Column{Name: name, Type: inferred.Type}
		e.logger.Debug("column type inferred",
			zap.String("column", name),
			zap.String("type", inferred.Type.String()),
			zap.Bool("nullable", inferred.Nullable),
			zap.Float64("confidence", inferred.Confidence))
	}
	return s
}

// InferType infers the type of one column from its sample values.
func (e *Inferer) InferType(values []interface{}) Inferred {
	counts := make(map[datatype.DataType]int)
	nulls, seen := 0, 0
	for _, v := range values {
		t := e.detectValueType(v)
		if t.IsZero() {
			nulls++
			continue
		}
		counts[t]++
		seen++
	}
	if seen == 0 {
		return Inferred{Type: datatype.String, Nullable: true}
	}

	t, count := e.unify(counts)
	return Inferred{
		Type:       t,
		Nullable:   nulls > 0,
		Confidence: float64(count) / float64(seen),
	}
}

// unify picks the column type. Numeric types widen to the widest seen;
// any other mix falls back to string unless one type is dominant.
func (e *Inferer) unify(counts map[datatype.DataType]int) (datatype.DataType, int) {
	if len(counts) == 1 {
		for t, c := range counts {
			return t, c
		}
	}

	numeric, total := 0, 0
	widest := datatype.Int
	var dominant datatype.DataType
	best := 0
	for t, c := range counts {
		total += c
		if c > best || (c == best && t.Signature() < dominant.Signature()) {
			dominant, best = t, c
		}
		switch t {
		case datatype.Int:
			numeric += c
		case datatype.Long:
			numeric += c
			if widest == datatype.Int {
				widest = datatype.Long
			}
		case datatype.Double:
			numeric += c
			widest = datatype.Double
		}
	}
	if numeric == total {
		return widest, total
	}

	collections := 0
	for t, c := range counts {
		if t.IsCollection() {
			collections += c
		}
	}
	if collections == total {
		elems := make(map[datatype.DataType]int, len(counts))
		for t, c := range counts {
			elems[t.Element()] += c
		}
		elem, _ := e.unify(elems)
		return datatype.CollectionOf(elem), total
	}

	if float64(best)/float64(total) >= e.confidenceThreshold {
		return dominant, best
	}
	return datatype.String, total
}

// detectValueType returns the zero type for nulls and empty text.
func (e *Inferer) detectValueType(value interface{}) datatype.DataType {
	switch v := value.(type) {
	case nil:
		return datatype.DataType{}
	case bool:
		return datatype.Boolean
	case int8, int16, int32, uint8, uint16:
		return datatype.Int
	case int:
		return intType(int64(v))
	case int64:
		return intType(v)
	case uint32, uint64, uint:
		return datatype.Long
	case float32, float64:
		return datatype.Double
	case time.Time:
		return datatype.Timestamp
	case []interface{}:
		counts := make(map[datatype.DataType]int)
		for _, elem := range v {
			if t := e.detectValueType(elem); !t.IsZero() {
				counts[t]++
			}
		}
		if len(counts) == 0 {
			return datatype.CollectionOf(datatype.Double)
		}
		t, _ := e.unify(counts)
		return datatype.CollectionOf(t)
	case string:
		return e.detectTextType(v)
	default:
		return datatype.String
	}
}

func (e *Inferer) detectTextType(s string) datatype.DataType {
	s = strings.TrimSpace(s)
	if s == "" {
		return datatype.DataType{}
	}
	if lower := strings.ToLower(s); lower == "true" || lower == "false" {
		return datatype.Boolean
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return intType(n)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return datatype.Double
	}
	for _, p := range e.timestampPatterns {
		if p.MatchString(s) {
			return datatype.Timestamp
		}
	}
	return datatype.String
}

func intType(n int64) datatype.DataType {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return datatype.Int
	}
	return datatype.Long
}
