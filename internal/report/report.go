// Package report renders a compact Markdown summary of an estimates table.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/montanaflynn/stats"
)

// DefaultWorst is how many partitions the worst-fit section lists.
const DefaultWorst = 5

// ColumnStats summarizes one numeric column over the partitions that have it.
type ColumnStats struct {
	Name   string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Std    float64
}

// Report is the summary of an estimates table.
type Report struct {
	Title      string
	Index      []string
	Partitions int
	Placed     int
	EarliestT0 time.Time
	LatestT0   time.Time
	Columns    []ColumnStats
	// Worst lists the partitions with the highest value of the first metric.
	Worst []Ranked
}

// Ranked is one partition with its score.
type Ranked struct {
	Key   []string
	Value float64
}

// Build summarizes est. worst <= 0 uses DefaultWorst.
func Build(title string, est *dataset.Estimates, worst int) (*Report, error) {
	if worst <= 0 {
		worst = DefaultWorst
	}
	r := &Report{Title: title, Index: est.Index, Partitions: est.Len()}

	var c0 []float64
	for _, row := range est.Rows {
		if row.HasC0() {
			c0 = append(c0, row.C0)
		}
		if row.T0 == nil {
			continue
		}
		r.Placed++
		if r.EarliestT0.IsZero() || row.T0.Before(r.EarliestT0) {
			r.EarliestT0 = *row.T0
		}
		if row.T0.After(r.LatestT0) {
			r.LatestT0 = *row.T0
		}
	}
	cs, err := summarize(dataset.ColC0, c0)
	if err != nil {
		return nil, err
	}
	if cs.Count > 0 {
		r.Columns = append(r.Columns, cs)
	}

	for _, name := range est.Metrics {
		var vals []float64
		for _, row := range est.Rows {
			if v, ok := row.Metrics[name]; ok && !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		cs, err := summarize(name, vals)
		if err != nil {
			return nil, err
		}
		if cs.Count > 0 {
			r.Columns = append(r.Columns, cs)
		}
	}

	if len(est.Metrics) > 0 {
		first := est.Metrics[0]
		for _, row := range est.Rows {
			if v, ok := row.Metrics[first]; ok && !math.IsNaN(v) {
				r.Worst = append(r.Worst, Ranked{Key: row.Key, Value: v})
			}
		}
		sort.SliceStable(r.Worst, func(i, j int) bool { return r.Worst[i].Value > r.Worst[j].Value })
		if len(r.Worst) > worst {
			r.Worst = r.Worst[:worst]
		}
	}
	return r, nil
}

func summarize(name string, vals []float64) (ColumnStats, error) {
	cs := ColumnStats{Name: name, Count: len(vals)}
	if len(vals) == 0 {
		return cs, nil
	}
	data := stats.Float64Data(vals)
	var err error
	if cs.Min, err = data.Min(); err != nil {
		return cs, fmt.Errorf("summarize %s: %w", name, err)
	}
	if cs.Max, err = data.Max(); err != nil {
		return cs, fmt.Errorf("summarize %s: %w", name, err)
	}
	if cs.Mean, err = data.Mean(); err != nil {
		return cs, fmt.Errorf("summarize %s: %w", name, err)
	}
	if cs.Median, err = data.Median(); err != nil {
		return cs, fmt.Errorf("summarize %s: %w", name, err)
	}
	if cs.Std, err = data.StandardDeviation(); err != nil {
		return cs, fmt.Errorf("summarize %s: %w", name, err)
	}
	return cs, nil
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[ESTIMATES SUMMARY]\n")
	if r.Title != "" {
		b.WriteString(fmt.Sprintf("Model: %s\n", r.Title))
	}
	b.WriteString(fmt.Sprintf("Index: %s\n", strings.Join(r.Index, ", ")))
	b.WriteString(fmt.Sprintf("Partitions: %d (threshold placed for %d)\n", r.Partitions, r.Placed))
	if r.Placed > 0 {
		b.WriteString(fmt.Sprintf("t_0 range: %s to %s\n", r.EarliestT0.Format(dataset.DateLayout), r.LatestT0.Format(dataset.DateLayout)))
	}
	b.WriteString("\n")

	if len(r.Columns) > 0 {
		b.WriteString("[COLUMNS]\n")
		b.WriteString("| column | n | min | median | mean | max | std |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, c := range r.Columns {
			b.WriteString(fmt.Sprintf("| %s | %d | %.4g | %.4g | %.4g | %.4g | %.4g |\n", c.Name, c.Count, c.Min, c.Median, c.Mean, c.Max, c.Std))
		}
		b.WriteString("\n")
	}

	if len(r.Worst) > 0 {
		b.WriteString("[WORST FITS]\n")
		for _, w := range r.Worst {
			b.WriteString(fmt.Sprintf("- %s: %.4g\n", dataset.FormatKey(w.Key), w.Value))
		}
	}
	return b.String()
}
