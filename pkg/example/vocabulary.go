package example

import (
	"context"
	"io"

	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/ndarray"
	"github.com/knime/knime-dl4j-sub000/pkg/table"
)

// Vocabulary is an ordered set of distinct class labels. A label's one-hot
// position is its index. Vocabularies are immutable so one instance can be
// shared between training and prediction.
type Vocabulary struct {
	labels []string
	index  map[string]int
}

// NewVocabulary creates a vocabulary. Duplicate labels are rejected.
func NewVocabulary(labels ...string) (*Vocabulary, error) {
	v := &Vocabulary{
		labels: make([]string, 0, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for _, l := range labels {
		if _, dup := v.index[l]; dup {
			return nil, errors.Newf(errors.ErrorTypeVocabulary, "duplicate label %q", l)
		}
		v.index[l] = len(v.labels)
		v.labels = append(v.labels, l)
	}
	return v, nil
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.labels)
}

// Index returns the position of label.
func (v *Vocabulary) Index(label string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[label]
	return i, ok
}

// Label returns the label at position i.
func (v *Vocabulary) Label(i int) (string, bool) {
	if v == nil || i < 0 || i >= len(v.labels) {
		return "", false
	}
	return v.labels[i], true
}

// Labels returns a copy of the labels in order.
func (v *Vocabulary) Labels() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Encode returns the one-hot vector of label.
func (v *Vocabulary) Encode(label string) ([]float64, error) {
	if v.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeVocabulary, "label vocabulary is empty")
	}
	i, ok := v.Index(label)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeVocabulary, "label %q not in vocabulary", label)
	}
	return ndarray.OneHot(v.Len(), i), nil
}

// Decode returns the label at the arg-max of a prediction vector.
func (v *Vocabulary) Decode(vec []float64) (string, error) {
	if len(vec) != v.Len() {
		return "", errors.Newf(errors.ErrorTypeLengthMismatch, "prediction has %d values, vocabulary has %d labels", len(vec), v.Len()).
			WithDetail(errors.DetailExpected, v.Len()).
			WithDetail(errors.DetailActual, len(vec))
	}
	i := ndarray.ArgMax(vec)
	if i < 0 {
		return "", errors.New(errors.ErrorTypeVocabulary, "prediction has no comparable values")
	}
	return v.labels[i], nil
}

// BuildVocabulary scans column of tbl and collects its distinct labels in
// first-seen order. Cells are converted to strings through the cache.
// Missing cells are ignored.
func BuildVocabulary(ctx context.Context, tbl table.Table, column string, reg convert.Resolver, cache *convert.Cache) (*Vocabulary, error) {
	col := tbl.Schema().Index(column)
	if col < 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "label column %q not found", column).
			WithDetail(errors.DetailColumn, column)
	}

	cur, err := tbl.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var labels []string
	seen := make(map[string]bool)
	for {
		row, err := cur.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cell := row.Cell(col)
		if cell.IsMissing() {
			continue
		}
		label, err := labelOf(cell, reg, cache)
		if err != nil {
			return nil, errors.Annotate(err, errors.DetailRowKey, row.Key)
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}

	if len(labels) == 0 {
		return nil, errors.Newf(errors.ErrorTypeVocabulary, "column %q has no labels", column)
	}
	return NewVocabulary(labels...)
}

func labelOf(cell table.FieldValue, reg convert.Resolver, cache *convert.Cache) (string, error) {
	if cell.IsCollection() {
		return "", errors.Newf(errors.ErrorTypeConversion, "label cell must be scalar, got %s", cell.Type())
	}
	v, err := convert.Convert(cache, reg, cell.Type(), cell.Value(), datatype.String)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeConversion, "label converter returned %T", v)
	}
	return s, nil
}
