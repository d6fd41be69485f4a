// Package model fits completeness breakpoints per partition and keeps the
// resulting estimates.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/algos"
	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/driver"
	"github.com/KaramelBytes/edsteva-cli/internal/loss"
	"github.com/KaramelBytes/edsteva-cli/internal/metrics"
	"github.com/google/uuid"
)

// Params controls a fit. Zero values fall back to the defaults.
type Params struct {
	Algorithm    Algorithm      `json:"algorithm"`
	Loss         loss.Function  `json:"loss_function"`
	MinRectWidth int            `json:"min_rect_month_width"`
	Quantile     float64        `json:"quantile"`
	Jobs         int            `json:"-"`
	Metrics      []metrics.Name `json:"metrics"`
	Start        time.Time      `json:"start_date"`
	End          time.Time      `json:"end_date"`
}

func (p Params) withDefaults(k Kind) (Params, error) {
	if p.Algorithm == "" {
		p.Algorithm = LossMinimization
	}
	if p.Loss == "" {
		p.Loss = loss.Default
	}
	if p.MinRectWidth <= 0 {
		p.MinRectWidth = algos.DefaultMinRectWidth
	}
	if p.Quantile == 0 {
		p.Quantile = algos.DefaultQuantile
	}
	if p.Quantile < 0 || p.Quantile > 1 {
		return p, fmt.Errorf("quantile must be in (0, 1], got %g", p.Quantile)
	}
	if len(p.Metrics) == 0 {
		p.Metrics = k.DefaultMetrics()
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return p, fmt.Errorf("study window ends (%s) before it starts (%s)", p.End.Format(dataset.DateLayout), p.Start.Format(dataset.DateLayout))
	}
	return p, nil
}

// Model holds the fitted estimates of one kind of shape over one partition
// index. The zero value is not usable; call New.
type Model struct {
	Kind     Kind
	Index    []string
	Params   Params
	FitID    string
	FittedAt time.Time
	// Skipped lists partitions whose thresholds could not be placed in the
	// last fit; their estimates row carries no threshold.
	Skipped [][]string

	estimates *dataset.Estimates
	cache     *dataset.Estimates
}

// New returns an unfitted model. index must name at least one column.
func New(kind Kind, index []string) (*Model, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, errors.New("model index must name at least one partition column")
	}
	return &Model{Kind: kind, Index: append([]string(nil), index...)}, nil
}

// IsComputed reports whether the model holds estimates.
func (m *Model) IsComputed() bool { return m.estimates != nil && m.estimates.Len() > 0 }

// Fit estimates the coefficients of every partition of pred. On error the
// model keeps its previous state.
func (m *Model) Fit(ctx context.Context, pred *dataset.Predictor, params Params) error {
	if pred == nil {
		return ErrEmptyEstimates
	}
	if err := pred.Validate(m.Index); err != nil {
		return err
	}
	p, err := params.withDefaults(m.Kind)
	if err != nil {
		return err
	}
	fn, err := m.fitter(p)
	if err != nil {
		return err
	}
	window := pred.Between(p.Start, p.End)
	parts, err := window.Partitions(m.Index)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return ErrEmptyEstimates
	}
	rows, err := driver.Run(ctx, parts, p.Jobs, fn)
	if err != nil {
		return err
	}

	est := &dataset.Estimates{
		Index:        append([]string(nil), m.Index...),
		Coefficients: m.Kind.Coefficients(),
		Rows:         rows,
	}
	if err := metrics.Compute(window, est, p.Metrics, p.Loss, m.Kind.Reconstruct); err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}
	if err := est.Validate(); err != nil {
		return fmt.Errorf("validate estimates: %w", err)
	}

	var skipped [][]string
	for _, r := range est.Rows {
		if r.T0 == nil {
			skipped = append(skipped, r.Key)
		}
	}
	m.Params = p
	m.Skipped = skipped
	m.FitID = uuid.NewString()
	m.FittedAt = time.Now().UTC()
	m.estimates = est
	m.cache = est.Clone()
	return nil
}

// fitter maps the model kind and algorithm to a per-partition fit.
func (m *Model) fitter(p Params) (driver.Func, error) {
	switch m.Kind {
	case StepFunction:
		switch p.Algorithm {
		case LossMinimization:
			return func(_ context.Context, part dataset.Partition) (dataset.EstimateRow, error) {
				f := algos.StepLossMinimization(part.Dates, part.C, p.Loss)
				t0 := f.T0
				return dataset.EstimateRow{Key: part.Key, T0: &t0, C0: f.C0}, nil
			}, nil
		case Quantile:
			return func(_ context.Context, part dataset.Partition) (dataset.EstimateRow, error) {
				f := algos.StepQuantile(part.Dates, part.C, p.Quantile)
				return dataset.EstimateRow{Key: part.Key, T0: f.T0, C0: f.C0}, nil
			}, nil
		}
	case RectangleFunction:
		if p.Algorithm == LossMinimization {
			return func(_ context.Context, part dataset.Partition) (dataset.EstimateRow, error) {
				f, ok := algos.RectangleLossMinimization(part.Dates, part.C, p.Loss, p.MinRectWidth)
				if !ok {
					return dataset.EstimateRow{Key: part.Key, C0: math.NaN()}, nil
				}
				t0, t1 := f.T0, f.T1
				return dataset.EstimateRow{Key: part.Key, T0: &t0, C0: f.C0, T1: &t1}, nil
			}, nil
		}
	}
	return nil, &UnsupportedError{Kind: m.Kind, Algorithm: p.Algorithm}
}

// Predict returns a copy of pred with CHat filled from the estimates. Every
// partition of pred must have an estimate.
func (m *Model) Predict(pred *dataset.Predictor) (*dataset.Predictor, error) {
	if !m.IsComputed() {
		return nil, ErrNotFitted
	}
	proj, err := pred.NewProjector(m.Index)
	if err != nil {
		return nil, err
	}
	lookup := m.estimates.Lookup()
	out := pred.Clone()
	uncovered := map[string][]string{}
	for i, r := range out.Rows {
		key := proj.Key(r)
		j, ok := lookup[dataset.KeyString(key)]
		if !ok {
			uncovered[dataset.KeyString(key)] = key
			continue
		}
		out.Rows[i].CHat = m.Kind.Reconstruct(m.estimates.Rows[j], r.Date)
	}
	if len(uncovered) > 0 {
		ids := make([]string, 0, len(uncovered))
		for k := range uncovered {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		e := &UncoveredPartitionsError{}
		for _, k := range ids {
			e.Keys = append(e.Keys, uncovered[k])
		}
		return nil, e
	}
	return out, nil
}

// Evaluate scores a copy of the estimates against pred with the given
// metrics, using the loss and study window of the last fit. With no names
// it recomputes the metrics of the last fit.
func (m *Model) Evaluate(pred *dataset.Predictor, names []metrics.Name) (*dataset.Estimates, error) {
	if !m.IsComputed() {
		return nil, ErrNotFitted
	}
	if len(names) == 0 {
		names = m.Params.Metrics
	}
	if len(names) == 0 {
		names = m.Kind.DefaultMetrics()
	}
	pred = pred.Between(m.Params.Start, m.Params.End)
	est := m.estimates.Clone()
	est.Metrics = nil
	for i := range est.Rows {
		est.Rows[i].Metrics = nil
	}
	if err := metrics.Compute(pred, est, names, m.Params.Loss, m.Kind.Reconstruct); err != nil {
		return nil, err
	}
	return est, nil
}

// Estimates returns a copy of the working estimates, or nil before a fit.
func (m *Model) Estimates() *dataset.Estimates { return m.estimates.Clone() }

// FilterEstimates narrows the working estimates to the rows keep accepts.
// ResetEstimates undoes it.
func (m *Model) FilterEstimates(keep func(dataset.EstimateRow) bool) error {
	if m.estimates == nil {
		return ErrNotFitted
	}
	m.estimates.Filter(keep)
	return nil
}

// ResetEstimates restores the estimates of the last successful fit.
func (m *Model) ResetEstimates() error {
	if m.cache == nil {
		return ErrNotFitted
	}
	m.estimates = m.cache.Clone()
	return nil
}
