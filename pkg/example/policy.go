package example

import (
	"fmt"
	"strings"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

// Mode selects whether examples carry real targets.
type Mode int

const (
	// ModeTrain populates targets according to the target policy
	ModeTrain Mode = iota
	// ModeTest treats every field as a feature and emits placeholder targets
	ModeTest
)

// String implements fmt.Stringer
func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeTest:
		return "test"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "train" or "test".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return ModeTrain, nil
	case "test":
		return ModeTest, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", s)
	}
}

// PolicyKind tags the variant of a TargetPolicy.
type PolicyKind int

const (
	// PolicyClassification one-hot encodes a single label column
	PolicyClassification PolicyKind = iota + 1
	// PolicyRegression converts one or more target columns
	PolicyRegression
	// PolicyReconstruction uses the features as target
	PolicyReconstruction
)

// String implements fmt.Stringer
func (k PolicyKind) String() string {
	switch k {
	case PolicyClassification:
		return "classification"
	case PolicyRegression:
		return "regression"
	case PolicyReconstruction:
		return "reconstruction"
	default:
		return fmt.Sprintf("policy(%d)", int(k))
	}
}

// TargetPolicy decides which fields form the target in Train mode and how.
// Build one with Classification, Regression or Reconstruction.
type TargetPolicy struct {
	kind          PolicyKind
	labelColumn   int
	vocabulary    *Vocabulary
	targetColumns []int
}

// Classification targets a one-hot encoding of the label at labelColumn
// within vocab.
func Classification(labelColumn int, vocab *Vocabulary) TargetPolicy {
	return TargetPolicy{kind: PolicyClassification, labelColumn: labelColumn, vocabulary: vocab}
}

// Regression targets the converted values of the given columns, in the
// columns' row order.
func Regression(targetColumns ...int) TargetPolicy {
	cols := make([]int, len(targetColumns))
	copy(cols, targetColumns)
	return TargetPolicy{kind: PolicyRegression, targetColumns: cols}
}

// Reconstruction targets the feature vector itself.
func Reconstruction() TargetPolicy {
	return TargetPolicy{kind: PolicyReconstruction}
}

// Kind returns the policy variant.
func (p TargetPolicy) Kind() PolicyKind { return p.kind }

// LabelColumn returns the label column of a classification policy, or -1.
func (p TargetPolicy) LabelColumn() int {
	if p.kind != PolicyClassification {
		return -1
	}
	return p.labelColumn
}

// TargetColumns returns the target columns of a regression policy.
func (p TargetPolicy) TargetColumns() []int {
	out := make([]int, len(p.targetColumns))
	copy(out, p.targetColumns)
	return out
}

// Vocabulary returns the vocabulary of a classification policy.
func (p TargetPolicy) Vocabulary() *Vocabulary { return p.vocabulary }

func (p TargetPolicy) isTarget(col int) bool {
	switch p.kind {
	case PolicyClassification:
		return col == p.labelColumn
	case PolicyRegression:
		for _, c := range p.targetColumns {
			if c == col {
				return true
			}
		}
	}
	return false
}

// validate checks the policy against a row width.
func (p TargetPolicy) validate(width int) error {
	switch p.kind {
	case PolicyClassification:
		if p.vocabulary == nil || p.vocabulary.Len() == 0 {
			return errors.New(errors.ErrorTypeVocabulary, "classification requires a non-empty label vocabulary")
		}
		if p.labelColumn < 0 || p.labelColumn >= width {
			return errors.Newf(errors.ErrorTypeValidation, "label column %d out of range for %d fields", p.labelColumn, width)
		}
	case PolicyRegression:
		if len(p.targetColumns) == 0 {
			return errors.New(errors.ErrorTypeValidation, "regression requires at least one target column")
		}
		seen := make(map[int]bool, len(p.targetColumns))
		for _, c := range p.targetColumns {
			if c < 0 || c >= width {
				return errors.Newf(errors.ErrorTypeValidation, "target column %d out of range for %d fields", c, width)
			}
			if seen[c] {
				return errors.Newf(errors.ErrorTypeValidation, "target column %d listed twice", c)
			}
			seen[c] = true
		}
	case PolicyReconstruction:
	default:
		return errors.New(errors.ErrorTypeValidation, "target policy not set")
	}
	return nil
}
