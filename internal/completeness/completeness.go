package completeness

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/utils"
	"github.com/montanaflynn/stats"
)

// Method selects how the expected volume of a partition is derived.
type Method string

const (
	// MethodPercentile divides by the 99th percentile of the monthly numerator.
	MethodPercentile Method = "percentile"
	// MethodMax divides by the maximum monthly numerator.
	MethodMax Method = "max"
	// MethodRatio divides the numerator by the paired denominator of the same month.
	MethodRatio Method = "ratio"
)

// CapQuantile is the quantile used by MethodPercentile.
const CapQuantile = 0.99

// ParseMethod resolves a method name.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodPercentile, "":
		return MethodPercentile, nil
	case MethodMax:
		return MethodMax, nil
	case MethodRatio:
		return MethodRatio, nil
	default:
		return "", fmt.Errorf("unknown completeness method %q (use percentile, max or ratio)", s)
	}
}

// CountRow is a raw monthly count for one partition.
type CountRow struct {
	Key  []string
	Date time.Time
	Num  float64
	Den  float64
}

// Counts is the raw count table completeness is computed from.
type Counts struct {
	Index []string
	Rows  []CountRow
}

// Compute turns raw counts into the predictor table. Counts sharing a
// partition and month are summed first. Every row gets a defined c in
// [0, 1]: a zero cap or denominator yields c = 0.
func Compute(counts *Counts, method Method) (*dataset.Predictor, error) {
	rows := aggregate(counts.Rows)
	out := &dataset.Predictor{Index: append([]string(nil), counts.Index...), Rows: make([]dataset.Row, 0, len(rows))}

	switch method {
	case MethodRatio:
		for _, r := range rows {
			out.Rows = append(out.Rows, dataset.Row{Key: r.Key, Date: r.Date, C: ratio(r.Num, r.Den), NNum: r.Num, NDen: r.Den})
		}
	case MethodPercentile, MethodMax:
		nums := map[string][]float64{}
		for _, r := range rows {
			k := dataset.KeyString(r.Key)
			nums[k] = append(nums[k], r.Num)
		}
		caps := make(map[string]float64, len(nums))
		for k, v := range nums {
			if method == MethodMax {
				// v is never empty, stats.Max only fails on empty input
				caps[k], _ = stats.Max(v)
			} else {
				caps[k] = utils.Quantile(v, CapQuantile)
			}
		}
		for _, r := range rows {
			cp := caps[dataset.KeyString(r.Key)]
			out.Rows = append(out.Rows, dataset.Row{Key: r.Key, Date: r.Date, C: ratio(r.Num, cp), NNum: r.Num, NDen: cp})
		}
	default:
		return nil, fmt.Errorf("unknown completeness method %q", method)
	}
	return out, nil
}

// Between drops the count rows dated outside [start, end]. A zero bound is
// open. Call it before Compute so caps only see the study window.
func (c *Counts) Between(start, end time.Time) {
	rows := c.Rows[:0]
	for _, r := range c.Rows {
		if !start.IsZero() && r.Date.Before(dataset.MonthStart(start)) {
			continue
		}
		if !end.IsZero() && r.Date.After(dataset.MonthStart(end)) {
			continue
		}
		rows = append(rows, r)
	}
	c.Rows = rows
}

// ImputeMissingMonths adds zero-count rows so that every partition covers a
// contiguous monthly sequence: between its own first and last month, or
// over [start, end] when those bounds are set.
func (c *Counts) ImputeMissingMonths(start, end time.Time) {
	type span struct {
		key      []string
		min, max time.Time
		seen     map[int64]bool
	}
	spans := map[string]*span{}
	var order []string
	for _, r := range c.Rows {
		k := dataset.KeyString(r.Key)
		s := spans[k]
		if s == nil {
			s = &span{key: r.Key, min: r.Date, max: r.Date, seen: map[int64]bool{}}
			spans[k] = s
			order = append(order, k)
		}
		if r.Date.Before(s.min) {
			s.min = r.Date
		}
		if r.Date.After(s.max) {
			s.max = r.Date
		}
		s.seen[r.Date.Unix()] = true
	}
	sort.Strings(order)
	for _, k := range order {
		s := spans[k]
		from, to := s.min, s.max
		if !start.IsZero() {
			from = dataset.MonthStart(start)
		}
		if !end.IsZero() {
			to = dataset.MonthStart(end)
		}
		for d := from; !d.After(to); d = d.AddDate(0, 1, 0) {
			if s.seen[d.Unix()] {
				continue
			}
			c.Rows = append(c.Rows, CountRow{Key: append([]string(nil), s.key...), Date: d})
		}
	}
}

func aggregate(rows []CountRow) []CountRow {
	type cell struct {
		key  string
		date int64
	}
	pos := map[cell]int{}
	out := make([]CountRow, 0, len(rows))
	for _, r := range rows {
		id := cell{key: dataset.KeyString(r.Key), date: r.Date.Unix()}
		num, den := zeroNaN(r.Num), zeroNaN(r.Den)
		if i, ok := pos[id]; ok {
			out[i].Num += num
			out[i].Den += den
			continue
		}
		pos[id] = len(out)
		out = append(out, CountRow{Key: append([]string(nil), r.Key...), Date: r.Date, Num: num, Den: den})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := dataset.KeyString(out[i].Key), dataset.KeyString(out[j].Key)
		if ki != kj {
			return ki < kj
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	c := num / den
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
