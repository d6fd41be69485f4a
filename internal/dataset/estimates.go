package dataset

import (
	"fmt"
	"math"
	"time"
)

// Coefficient and column names shared by fitters, metrics and writers.
const (
	ColT0 = "t_0"
	ColC0 = "c_0"
	ColT1 = "t_1"
)

// EstimateRow holds the fitted coefficients of one partition. A threshold
// the fit could not place is nil; an unknown level is NaN.
type EstimateRow struct {
	Key     []string
	T0      *time.Time
	C0      float64
	T1      *time.Time
	Metrics map[string]float64
}

// Estimates is the fitted table: exactly one row per partition.
type Estimates struct {
	Index        []string
	Coefficients []string
	Metrics      []string
	Rows         []EstimateRow
}

// HasC0 reports whether the level was estimated.
func (r EstimateRow) HasC0() bool { return !math.IsNaN(r.C0) }

// Len returns the row count.
func (e *Estimates) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Rows)
}

// HasColumn reports whether name is a coefficient or metric column.
func (e *Estimates) HasColumn(name string) bool {
	for _, c := range e.Coefficients {
		if c == name {
			return true
		}
	}
	for _, m := range e.Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Require fails with a *MissingColumnError if any column is absent.
func (e *Estimates) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !e.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Table: "estimates", Columns: missing}
	}
	return nil
}

// AddMetric registers a metric column once.
func (e *Estimates) AddMetric(name string) {
	for _, m := range e.Metrics {
		if m == name {
			return
		}
	}
	e.Metrics = append(e.Metrics, name)
}

// Lookup maps KeyString(key) to the row position.
func (e *Estimates) Lookup() map[string]int {
	out := make(map[string]int, len(e.Rows))
	for i, r := range e.Rows {
		out[KeyString(r.Key)] = i
	}
	return out
}

// Clone returns a deep copy.
func (e *Estimates) Clone() *Estimates {
	if e == nil {
		return nil
	}
	out := &Estimates{
		Index:        append([]string(nil), e.Index...),
		Coefficients: append([]string(nil), e.Coefficients...),
		Metrics:      append([]string(nil), e.Metrics...),
		Rows:         make([]EstimateRow, len(e.Rows)),
	}
	for i, r := range e.Rows {
		c := EstimateRow{Key: append([]string(nil), r.Key...), C0: r.C0}
		if r.T0 != nil {
			t := *r.T0
			c.T0 = &t
		}
		if r.T1 != nil {
			t := *r.T1
			c.T1 = &t
		}
		if r.Metrics != nil {
			c.Metrics = make(map[string]float64, len(r.Metrics))
			for k, v := range r.Metrics {
				c.Metrics[k] = v
			}
		}
		out.Rows[i] = c
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (e *Estimates) Filter(keep func(EstimateRow) bool) {
	rows := e.Rows[:0]
	for _, r := range e.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	e.Rows = rows
}

// Validate checks that every coefficient column is registered and that each
// row carries the full index key.
func (e *Estimates) Validate() error {
	if err := e.Require(ColT0, ColC0); err != nil {
		return err
	}
	for i, r := range e.Rows {
		if len(r.Key) != len(e.Index) {
			return fmt.Errorf("estimates row %d: key has %d values, index has %d", i, len(r.Key), len(e.Index))
		}
	}
	return nil
}
