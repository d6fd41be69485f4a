package completeness

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/stretchr/testify/require"
)

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

func syntheticCounts(seed int64, sites int) *Counts {
	rng := rand.New(rand.NewSource(seed))
	c := &Counts{Index: []string{"care_site_id"}}
	for s := 0; s < sites; s++ {
		key := []string{string(rune('A' + s))}
		for m := 0; m < 24; m++ {
			num := float64(rng.Intn(500))
			if s == 0 {
				num = 0 // a site that never reports
			}
			den := num + float64(rng.Intn(50))
			if m%7 == 0 {
				den = 0
			}
			c.Rows = append(c.Rows, CountRow{Key: key, Date: month(2018, 1).AddDate(0, m, 0), Num: num, Den: den})
		}
	}
	return c
}

func TestComputeBounded(t *testing.T) {
	for _, method := range []Method{MethodPercentile, MethodMax, MethodRatio} {
		t.Run(string(method), func(t *testing.T) {
			counts := syntheticCounts(7, 6)
			p, err := Compute(counts, method)
			require.NoError(t, err)
			require.Len(t, p.Rows, len(counts.Rows))
			for _, r := range p.Rows {
				require.GreaterOrEqual(t, r.C, 0.0)
				require.LessOrEqual(t, r.C, 1.0)
				if r.NDen == 0 {
					require.Zero(t, r.C, "zero denominator must give c = 0")
				}
			}
		})
	}
}

func TestComputeZeroCap(t *testing.T) {
	counts := &Counts{Index: []string{"care_site_id"}, Rows: []CountRow{
		{Key: []string{"A"}, Date: month(2020, 1), Num: 0},
		{Key: []string{"A"}, Date: month(2020, 2), Num: 0},
	}}
	p, err := Compute(counts, MethodPercentile)
	require.NoError(t, err)
	for _, r := range p.Rows {
		require.Zero(t, r.C)
		require.Zero(t, r.NDen)
	}
}

func TestComputeMaxAndPercentile(t *testing.T) {
	counts := &Counts{Index: []string{"care_site_id"}}
	for i, n := range []float64{10, 20, 30, 40} {
		counts.Rows = append(counts.Rows, CountRow{Key: []string{"A"}, Date: month(2020, time.Month(i+1)), Num: n})
	}

	p, err := Compute(counts, MethodMax)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.25, 0.5, 0.75, 1}, cs(p), 1e-12)

	// cap = 39.7, so the last month is clipped to 1
	p, err = Compute(counts, MethodPercentile)
	require.NoError(t, err)
	require.InDelta(t, 39.7, p.Rows[0].NDen, 1e-9)
	require.InDelta(t, 10/39.7, p.Rows[0].C, 1e-12)
	require.Equal(t, 1.0, p.Rows[3].C)
}

func TestComputeRatioAggregatesDuplicates(t *testing.T) {
	counts := &Counts{Index: []string{"care_site_id"}, Rows: []CountRow{
		{Key: []string{"A"}, Date: month(2020, 1), Num: 1, Den: 4},
		{Key: []string{"A"}, Date: month(2020, 1), Num: 1, Den: 4},
		{Key: []string{"A"}, Date: month(2020, 2), Num: 3, Den: 0},
	}}
	p, err := Compute(counts, MethodRatio)
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	require.InDelta(t, 0.25, p.Rows[0].C, 1e-12)
	require.Equal(t, 2.0, p.Rows[0].NNum)
	require.Zero(t, p.Rows[1].C)
}

func TestImputeMissingMonths(t *testing.T) {
	counts := &Counts{Index: []string{"care_site_id"}, Rows: []CountRow{
		{Key: []string{"A"}, Date: month(2020, 1), Num: 5},
		{Key: []string{"A"}, Date: month(2020, 4), Num: 5},
		{Key: []string{"B"}, Date: month(2020, 2), Num: 5},
	}}
	counts.ImputeMissingMonths(time.Time{}, time.Time{})
	require.Len(t, counts.Rows, 5) // A gains Feb and Mar

	p, err := Compute(counts, MethodMax)
	require.NoError(t, err)
	parts, err := p.Partitions([]string{"care_site_id"})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 0, 1}, parts[0].C)

	counts.ImputeMissingMonths(month(2019, 12), month(2020, 5))
	p, err = Compute(counts, MethodMax)
	require.NoError(t, err)
	parts, err = p.Partitions([]string{"care_site_id"})
	require.NoError(t, err)
	require.Equal(t, 6, parts[0].Len())
	require.Equal(t, 6, parts[1].Len())
}

func TestCountsFromTable(t *testing.T) {
	tbl := dataset.NewTable("counts.csv",
		[]string{"care_site_id", "month", "n_visit", "n_total"},
		[][]string{{"A", "2020-01-01", "3", "4"}, {"A", "2020-02-01", "1", ""}})

	c, err := CountsFromTable(tbl, Columns{Index: []string{"care_site_id"}, Date: "month", Num: "n_visit", Den: "n_total"}, MethodRatio, dataset.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, c.Rows, 2)
	p, err := Compute(c, MethodRatio)
	require.NoError(t, err)
	require.InDelta(t, 0.75, p.Rows[0].C, 1e-12)
	require.Zero(t, p.Rows[1].C)

	_, err = CountsFromTable(tbl, Columns{Index: []string{"care_site_id"}, Date: "month", Num: "n_visit", Den: "n_with_event"}, MethodRatio, dataset.ReadOptions{})
	var mce *dataset.MissingColumnError
	require.True(t, errors.As(err, &mce))
	require.Equal(t, "counts", mce.Table)

	_, err = CountsFromTable(tbl, Columns{Index: []string{"care_site_id"}, Date: "month", Num: "n_visit"}, MethodMax, dataset.ReadOptions{})
	require.NoError(t, err)
}

func cs(p *dataset.Predictor) []float64 {
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.C
	}
	return out
}

func TestBetweenKeepsCapInsideWindow(t *testing.T) {
	counts := &Counts{Index: []string{"care_site_id"}, Rows: []CountRow{
		{Key: []string{"A"}, Date: month(2019, 1), Num: 1000},
		{Key: []string{"A"}, Date: month(2020, 1), Num: 10},
		{Key: []string{"A"}, Date: month(2020, 3), Num: 10},
	}}
	counts.Between(month(2020, 1), time.Time{})
	require.Len(t, counts.Rows, 2)

	counts.ImputeMissingMonths(month(2020, 1), time.Time{})
	p, err := Compute(counts, MethodMax)
	require.NoError(t, err)
	require.Len(t, p.Rows, 3)
	require.Equal(t, []float64{1, 0, 1}, cs(p))
	require.Equal(t, 10.0, p.Rows[0].NDen)
}
