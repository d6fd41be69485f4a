package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/metrics"
)

// Kind selects the shape fitted to each partition.
type Kind string

const (
	// StepFunction is 0 before t_0 and c_0 from t_0 on.
	StepFunction Kind = "step"
	// RectangleFunction is c_0 on [t_0, t_1] and 0 elsewhere.
	RectangleFunction Kind = "rectangle"
)

// Algorithm selects how the coefficients are estimated.
type Algorithm string

const (
	// LossMinimization searches the thresholds minimizing the mean loss.
	LossMinimization Algorithm = "loss_minimization"
	// Quantile places c_0 at a quantile of c and t_0 at the first month above it.
	Quantile Algorithm = "quantile"
)

// ParseKind resolves a kind name; "step_function" and "rectangle_function"
// are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "step", "step_function":
		return StepFunction, nil
	case "rectangle", "rect", "rectangle_function":
		return RectangleFunction, nil
	default:
		return "", fmt.Errorf("unknown model %q (use step or rectangle)", s)
	}
}

// ParseAlgorithm resolves an algorithm name; empty means LossMinimization.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case LossMinimization, "":
		return LossMinimization, nil
	case Quantile:
		return Quantile, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q (use loss_minimization or quantile)", s)
	}
}

// Coefficients returns the estimates columns the kind produces.
func (k Kind) Coefficients() []string {
	if k == RectangleFunction {
		return []string{dataset.ColT0, dataset.ColC0, dataset.ColT1}
	}
	return []string{dataset.ColT0, dataset.ColC0}
}

// DefaultMetrics returns the metrics computed when a fit names none.
func (k Kind) DefaultMetrics() []metrics.Name {
	if k == RectangleFunction {
		return []metrics.Name{metrics.ErrorBetweenT0T1}
	}
	return []metrics.Name{metrics.ErrorAfterT0}
}

// Reconstruct returns ĉ(t) for a partition. A missing threshold yields 0.
func (k Kind) Reconstruct(e dataset.EstimateRow, t time.Time) float64 {
	if e.T0 == nil || t.Before(*e.T0) {
		return 0
	}
	if k == RectangleFunction {
		if e.T1 == nil || t.After(*e.T1) {
			return 0
		}
	}
	return e.C0
}
