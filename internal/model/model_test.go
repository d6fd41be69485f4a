package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/algos"
	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/loss"
	"github.com/KaramelBytes/edsteva-cli/internal/metrics"
	"github.com/stretchr/testify/require"
)

var index = []string{"care_site_id"}

func month(i int) time.Time {
	return time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
}

func addSeries(p *dataset.Predictor, key string, c ...float64) {
	for i, v := range c {
		p.Rows = append(p.Rows, dataset.Row{Key: []string{key, "hospit"}, Date: month(i), C: v})
	}
}

func newPredictor() *dataset.Predictor {
	return &dataset.Predictor{Index: []string{"care_site_id", "stay_type"}}
}

func TestNewRequiresIndex(t *testing.T) {
	_, err := New(StepFunction, nil)
	require.Error(t, err)
	_, err = New(Kind("spline"), index)
	require.Error(t, err)
}

func TestFitStepScenario(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 0, 0, 0.8, 0.8, 0.8, 0.8)
	addSeries(pred, "B", 0, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5)

	m, err := New(StepFunction, index)
	require.NoError(t, err)
	require.False(t, m.IsComputed())
	require.NoError(t, m.Fit(context.Background(), pred, Params{Jobs: 2}))
	require.True(t, m.IsComputed())
	require.NotEmpty(t, m.FitID)

	est := m.Estimates()
	require.Equal(t, []string{"t_0", "c_0"}, est.Coefficients)
	require.Equal(t, []string{"error_after_t0"}, est.Metrics)
	require.Len(t, est.Rows, 2)
	require.Equal(t, []string{"A"}, est.Rows[0].Key)
	require.Equal(t, month(3), *est.Rows[0].T0)
	require.InDelta(t, 0.8, est.Rows[0].C0, 1e-12)
	require.Zero(t, est.Rows[0].Metrics["error_after_t0"])
	require.Equal(t, month(1), *est.Rows[1].T0)
	require.Empty(t, m.Skipped)
}

func TestFitFailureKeepsState(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 1, 1)
	m, _ := New(StepFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{}))
	id := m.FitID

	bad := &dataset.Predictor{Index: []string{"stay_type"}, Rows: pred.Rows}
	err := m.Fit(context.Background(), bad, Params{})
	var mce *dataset.MissingColumnError
	require.ErrorAs(t, err, &mce)
	require.Equal(t, "predictor", mce.Table)
	require.Equal(t, id, m.FitID)
	require.True(t, m.IsComputed())

	err = m.Fit(context.Background(), pred, Params{Start: month(10)})
	require.ErrorIs(t, err, ErrEmptyEstimates)
	require.Equal(t, id, m.FitID)

	err = m.Fit(context.Background(), pred, Params{Quantile: 1.5})
	require.Error(t, err)
	require.Equal(t, id, m.FitID)
}

func TestFitRejectsDuplicateDates(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 1)
	addSeries(pred, "A", 0, 1)
	m, _ := New(StepFunction, index)
	var dde *dataset.DuplicateDateError
	require.ErrorAs(t, m.Fit(context.Background(), pred, Params{}), &dde)
}

func TestQuantileOnlyForStep(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0.1, 0.1, 0.1, 0.9, 0.9, 0.9)

	m, _ := New(RectangleFunction, index)
	var ue *UnsupportedError
	require.ErrorAs(t, m.Fit(context.Background(), pred, Params{Algorithm: Quantile}), &ue)

	m, _ = New(StepFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{Algorithm: Quantile, Quantile: 0.8}))
	est := m.Estimates()
	require.Nil(t, est.Rows[0].T0)
	require.InDelta(t, 0.9, est.Rows[0].C0, 1e-12)
	require.Equal(t, [][]string{{"A"}}, m.Skipped)
}

func TestRectangleFitAndDegeneratePartition(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 0, 0.7, 0.7, 0.7, 0.7, 0, 0)
	addSeries(pred, "B", 0.2, 0.4, 0.4, 0.1)

	m, _ := New(RectangleFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{MinRectWidth: 3}))
	est := m.Estimates()
	require.Equal(t, []string{"t_0", "c_0", "t_1"}, est.Coefficients)

	a := est.Rows[0]
	require.Equal(t, month(2), *a.T0)
	require.Equal(t, month(6), *a.T1)
	// the prediction window is closed on t_1, so month 6 counts against the fit
	require.InDelta(t, 0.49/5, a.Metrics["error_between_t0_t1"], 1e-12)

	b := est.Rows[1]
	require.Nil(t, b.T0)
	require.Nil(t, b.T1)
	require.True(t, math.IsNaN(b.C0))
	require.Empty(t, b.Metrics)
	require.Equal(t, [][]string{{"B"}}, m.Skipped)

	out, err := m.Predict(pred)
	require.NoError(t, err)
	for _, r := range out.Rows {
		if r.Key[0] == "B" {
			require.Zero(t, r.CHat)
		}
	}
}

func TestPredictRequiresFitAndCoverage(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 1, 1)

	m, _ := New(StepFunction, index)
	_, err := m.Predict(pred)
	require.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, m.Fit(context.Background(), pred, Params{}))
	other := newPredictor()
	addSeries(other, "A", 0, 1)
	addSeries(other, "Z", 0, 1)
	_, err = m.Predict(other)
	var upe *UncoveredPartitionsError
	require.ErrorAs(t, err, &upe)
	require.Equal(t, [][]string{{"Z"}}, upe.Keys)
}

func TestPredictRoundTripIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		n := 2 + rng.Intn(10)
		c := make([]float64, n)
		for i := range c {
			c[i] = rng.Float64()
		}
		pred := newPredictor()
		addSeries(pred, "A", c...)

		m, _ := New(StepFunction, index)
		require.NoError(t, m.Fit(context.Background(), pred, Params{Loss: loss.L1}))
		out, err := m.Predict(pred)
		require.NoError(t, err)

		res := make([]float64, n)
		for i, r := range out.Rows {
			res[i] = r.C - r.CHat
		}
		got := loss.L1.Mean(res)
		for k := 0; k < n; k++ {
			require.LessOrEqual(t, got, algos.StepLoss(c, k, loss.L1)+1e-12)
		}
	}
}

func TestFilterAndReset(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 1, 1)
	addSeries(pred, "B", 0, 0, 1)

	m, _ := New(StepFunction, index)
	require.ErrorIs(t, m.ResetEstimates(), ErrNotFitted)
	require.NoError(t, m.Fit(context.Background(), pred, Params{}))

	require.NoError(t, m.FilterEstimates(func(r dataset.EstimateRow) bool { return r.Key[0] == "B" }))
	require.Equal(t, 1, m.Estimates().Len())
	_, err := m.Predict(pred)
	require.True(t, errors.As(err, new(*UncoveredPartitionsError)))

	require.NoError(t, m.ResetEstimates())
	require.Equal(t, 2, m.Estimates().Len())

	// the returned table is a copy
	est := m.Estimates()
	est.Rows[0].C0 = 42
	require.NotEqual(t, 42.0, m.Estimates().Rows[0].C0)
}

func TestEvaluate(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 0, 0, 1, 1)
	m, _ := New(StepFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{}))

	drift := newPredictor()
	addSeries(drift, "A", 0, 0, 1, 0.5)
	est, err := m.Evaluate(drift, []metrics.Name{metrics.Error, metrics.ErrorAfterT0})
	require.NoError(t, err)
	require.InDelta(t, 0.25/4, est.Rows[0].Metrics["error"], 1e-12)
	require.InDelta(t, 0.25/2, est.Rows[0].Metrics["error_after_t0"], 1e-12)
	require.Zero(t, m.Estimates().Rows[0].Metrics["error_after_t0"])
}

func TestStudyWindow(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 1, 1, 0, 0, 0, 0.6, 0.6)
	m, _ := New(StepFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{Start: month(2)}))
	require.Equal(t, month(5), *m.Estimates().Rows[0].T0)
}

func TestEvaluateDefaultsToFitMetricsAndWindow(t *testing.T) {
	pred := newPredictor()
	addSeries(pred, "A", 1, 1, 0, 0, 0, 0.6, 0.6)
	m, _ := New(StepFunction, index)
	require.NoError(t, m.Fit(context.Background(), pred, Params{Start: month(2), Metrics: []metrics.Name{metrics.Error}}))
	require.Zero(t, m.Estimates().Rows[0].Metrics["error"])

	est, err := m.Evaluate(pred, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"error"}, est.Metrics)
	// months before the study window are not scored
	require.Zero(t, est.Rows[0].Metrics["error"])
}
