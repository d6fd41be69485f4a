// Package metrics scores fitted estimates against an observed predictor.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/loss"
)

// Name identifies an error metric; it is also the estimates column it fills.
type Name string

const (
	// Error is the mean loss over every observed month.
	Error Name = "error"
	// ErrorAfterT0 only scores months from t_0 on.
	ErrorAfterT0 Name = "error_after_t0"
	// ErrorBetweenT0T1 only scores months in [t_0, t_1].
	ErrorBetweenT0T1 Name = "error_between_t0_t1"
)

// All lists the known metrics.
var All = []Name{Error, ErrorAfterT0, ErrorBetweenT0T1}

// Reconstruct returns the modelled completeness of a partition at month t.
type Reconstruct func(est dataset.EstimateRow, t time.Time) float64

// Parse resolves a metric name.
func Parse(name string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(name)))
	for _, m := range All {
		if n == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", name)
}

// ParseList resolves a list of metric names, skipping blanks.
func ParseList(names []string) ([]Name, error) {
	var out []Name
	for _, s := range names {
		if strings.TrimSpace(s) == "" {
			continue
		}
		n, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Requires returns the estimates columns the metric depends on.
func (n Name) Requires() []string {
	switch n {
	case ErrorAfterT0:
		return []string{dataset.ColT0, dataset.ColC0}
	case ErrorBetweenT0T1:
		return []string{dataset.ColT0, dataset.ColC0, dataset.ColT1}
	default:
		return []string{dataset.ColC0}
	}
}

// keep reports whether month t of a partition with estimates est is scored.
func (n Name) keep(est dataset.EstimateRow, t time.Time) bool {
	switch n {
	case ErrorAfterT0:
		return est.T0 != nil && !t.Before(*est.T0)
	case ErrorBetweenT0T1:
		return est.T0 != nil && est.T1 != nil && !t.Before(*est.T0) && !t.After(*est.T1)
	default:
		return true
	}
}

// Compute adds the requested metrics to est. Every required column is
// checked before any row is read. Each metric is the per-partition mean of
// l(c - ĉ) over the months it keeps; a partition with no kept month gets no
// value. Rows of pred whose partition has no estimate are ignored.
func Compute(pred *dataset.Predictor, est *dataset.Estimates, names []Name, l loss.Function, reconstruct Reconstruct) error {
	var cols []string
	for _, n := range names {
		cols = append(cols, n.Requires()...)
	}
	if err := est.Require(cols...); err != nil {
		return err
	}
	proj, err := pred.NewProjector(est.Index)
	if err != nil {
		return err
	}
	lookup := est.Lookup()

	residuals := make([]map[Name][]float64, len(est.Rows))
	for _, r := range pred.Rows {
		i, ok := lookup[dataset.KeyString(proj.Key(r))]
		if !ok {
			continue
		}
		row := est.Rows[i]
		for _, n := range names {
			if !n.keep(row, r.Date) {
				continue
			}
			if residuals[i] == nil {
				residuals[i] = map[Name][]float64{}
			}
			residuals[i][n] = append(residuals[i][n], r.C-reconstruct(row, r.Date))
		}
	}

	for _, n := range names {
		est.AddMetric(string(n))
	}
	for i := range est.Rows {
		for _, n := range names {
			res := residuals[i][n]
			if len(res) == 0 {
				continue
			}
			if est.Rows[i].Metrics == nil {
				est.Rows[i].Metrics = map[string]float64{}
			}
			est.Rows[i].Metrics[string(n)] = l.Mean(res)
		}
	}
	return nil
}
