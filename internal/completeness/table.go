package completeness

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
)

// Columns names the count-table columns.
type Columns struct {
	Index []string
	Date  string
	Num   string
	Den   string
}

// CountsFromTable reads a raw count table. The denominator column is only
// required by MethodRatio.
func CountsFromTable(t *dataset.Table, cols Columns, method Method, opt dataset.ReadOptions) (*Counts, error) {
	required := append(append([]string(nil), cols.Index...), cols.Date, cols.Num)
	if method == MethodRatio {
		required = append(required, cols.Den)
	}
	if err := t.Require("counts", required...); err != nil {
		return nil, err
	}
	keyPos := make([]int, len(cols.Index))
	for i, name := range cols.Index {
		keyPos[i], _ = t.Col(name)
	}
	datePos, _ := t.Col(cols.Date)
	numPos, _ := t.Col(cols.Num)
	denPos, hasDen := t.Col(cols.Den)

	out := &Counts{Index: append([]string(nil), cols.Index...), Rows: make([]CountRow, 0, len(t.Records))}
	for i := range t.Records {
		key := make([]string, len(keyPos))
		for j, pos := range keyPos {
			key[j] = t.Cell(i, pos)
		}
		d, ok := dataset.ParseDate(t.Cell(i, datePos))
		if !ok {
			return nil, fmt.Errorf("row %d: invalid %s %q", i+1, cols.Date, t.Cell(i, datePos))
		}
		num, ok := dataset.ParseNumber(t.Cell(i, numPos), opt)
		if !ok {
			return nil, fmt.Errorf("row %d: invalid %s %q", i+1, cols.Num, t.Cell(i, numPos))
		}
		den := math.NaN()
		if hasDen {
			if den, ok = dataset.ParseNumber(t.Cell(i, denPos), opt); !ok {
				return nil, fmt.Errorf("row %d: invalid %s %q", i+1, cols.Den, t.Cell(i, denPos))
			}
		}
		out.Rows = append(out.Rows, CountRow{Key: key, Date: d, Num: num, Den: den})
	}
	return out, nil
}
