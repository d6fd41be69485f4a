package dataset

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the on-disk format for month timestamps.
const DateLayout = "2006-01-02"

// keySep joins partition key values; it never appears in categorical data.
const keySep = "\x1f"

// Row is one partition x month observation of the completeness signal.
type Row struct {
	Key  []string
	Date time.Time
	C    float64
	NNum float64
	NDen float64
	// CHat is filled by prediction; zero otherwise.
	CHat float64
}

// Predictor is the table consumed by the fitters: one row per partition and month.
type Predictor struct {
	Index []string
	Rows  []Row
}

// Partition is one partition's series, sorted by date ascending.
type Partition struct {
	Key   []string
	Dates []time.Time
	C     []float64
}

// Len returns the number of months in the partition.
func (p Partition) Len() int { return len(p.Dates) }

// MonthStart truncates t to the first day of its month, in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// KeyString returns a map-friendly identity for a partition key.
func KeyString(key []string) string { return strings.Join(key, keySep) }

// FormatKey renders a key for humans.
func FormatKey(key []string) string {
	if len(key) == 0 {
		return "(all)"
	}
	return "(" + strings.Join(key, ", ") + ")"
}

// Len returns the row count.
func (p *Predictor) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}

// Validate checks that every index column is part of the predictor's key.
func (p *Predictor) Validate(index []string) error {
	return requireColumns("predictor", p.Index, index)
}

// Clone returns a deep copy.
func (p *Predictor) Clone() *Predictor {
	out := &Predictor{Index: append([]string(nil), p.Index...), Rows: make([]Row, len(p.Rows))}
	for i, r := range p.Rows {
		r.Key = append([]string(nil), r.Key...)
		out.Rows[i] = r
	}
	return out
}

// Between returns the rows dated within [start, end]. A zero bound is open.
func (p *Predictor) Between(start, end time.Time) *Predictor {
	out := &Predictor{Index: append([]string(nil), p.Index...)}
	for _, r := range p.Rows {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Projector maps a predictor row key onto the given index columns.
type Projector struct {
	pos []int
}

// NewProjector builds a projection from the predictor key onto index.
func (p *Predictor) NewProjector(index []string) (Projector, error) {
	if err := p.Validate(index); err != nil {
		return Projector{}, err
	}
	hi := headerIndex(p.Index)
	pos := make([]int, len(index))
	for i, name := range index {
		pos[i] = hi[normName(name)]
	}
	return Projector{pos: pos}, nil
}

// Key returns the projected key of r.
func (pr Projector) Key(r Row) []string {
	out := make([]string, len(pr.pos))
	for i, j := range pr.pos {
		if j < len(r.Key) {
			out[i] = r.Key[j]
		}
	}
	return out
}

// Partitions groups rows by their projection on index. Partitions are
// returned in key order so output is deterministic.
func (p *Predictor) Partitions(index []string) ([]Partition, error) {
	proj, err := p.NewProjector(index)
	if err != nil {
		return nil, err
	}
	type acc struct {
		key  []string
		rows []Row
	}
	groups := map[string]*acc{}
	for _, r := range p.Rows {
		k := proj.Key(r)
		ks := KeyString(k)
		g := groups[ks]
		if g == nil {
			g = &acc{key: k}
			groups[ks] = g
		}
		g.rows = append(g.rows, r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Partition, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g.rows, func(i, j int) bool { return g.rows[i].Date.Before(g.rows[j].Date) })
		part := Partition{Key: g.key, Dates: make([]time.Time, len(g.rows)), C: make([]float64, len(g.rows))}
		for i, r := range g.rows {
			if i > 0 && r.Date.Equal(g.rows[i-1].Date) {
				return nil, &DuplicateDateError{Key: g.key, Date: r.Date}
			}
			part.Dates[i] = r.Date
			part.C[i] = r.C
		}
		out = append(out, part)
	}
	return out, nil
}
