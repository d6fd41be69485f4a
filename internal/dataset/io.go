package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Columns names the predictor columns read from a raw table.
type Columns struct {
	Index []string
	X     string // month column, "date" by default
	Y     string // completeness column, "c" by default
	NNum  string // optional numerator count column
	NDen  string // optional denominator column
}

// DefaultColumns returns the conventional column names for index.
func DefaultColumns(index []string) Columns {
	return Columns{Index: index, X: "date", Y: "c", NNum: "n_num", NDen: "n_den"}
}

// PredictorFromTable converts a raw table into a Predictor, failing fast on
// schema violations.
func PredictorFromTable(t *Table, cols Columns, opt ReadOptions) (*Predictor, error) {
	if cols.X == "" {
		cols.X = "date"
	}
	if cols.Y == "" {
		cols.Y = "c"
	}
	required := append(append([]string(nil), cols.Index...), cols.X, cols.Y)
	if err := t.Require("predictor", required...); err != nil {
		return nil, err
	}
	keyPos := make([]int, len(cols.Index))
	for i, name := range cols.Index {
		keyPos[i], _ = t.Col(name)
	}
	xPos, _ := t.Col(cols.X)
	yPos, _ := t.Col(cols.Y)
	numPos, hasNum := t.Col(cols.NNum)
	denPos, hasDen := t.Col(cols.NDen)

	p := &Predictor{Index: append([]string(nil), cols.Index...), Rows: make([]Row, 0, len(t.Records))}
	for i := range t.Records {
		key := make([]string, len(keyPos))
		for j, pos := range keyPos {
			key[j] = t.Cell(i, pos)
		}
		d, ok := ParseDate(t.Cell(i, xPos))
		if !ok {
			return nil, fmt.Errorf("row %d: invalid %s %q", i+1, cols.X, t.Cell(i, xPos))
		}
		c, ok := ParseNumber(t.Cell(i, yPos), opt)
		if !ok || math.IsNaN(c) {
			return nil, fmt.Errorf("row %d: invalid %s %q", i+1, cols.Y, t.Cell(i, yPos))
		}
		r := Row{Key: key, Date: d, C: c, NNum: math.NaN(), NDen: math.NaN()}
		if hasNum {
			if v, ok := ParseNumber(t.Cell(i, numPos), opt); ok {
				r.NNum = v
			}
		}
		if hasDen {
			if v, ok := ParseNumber(t.Cell(i, denPos), opt); ok {
				r.NDen = v
			}
		}
		p.Rows = append(p.Rows, r)
	}
	return p, nil
}

// WritePredictorCSV writes index, date, c, n_num, n_den and, when withCHat
// is set, c_hat.
func WritePredictorCSV(w io.Writer, p *Predictor, withCHat bool) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), p.Index...), "date", "c", "n_num", "n_den")
	if withCHat {
		header = append(header, "c_hat")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range p.Rows {
		rec := append(append([]string(nil), r.Key...),
			r.Date.Format(DateLayout), formatFloat(r.C), formatFloat(r.NNum), formatFloat(r.NDen))
		if withCHat {
			rec = append(rec, formatFloat(r.CHat))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEstimatesCSV writes index, coefficient and metric columns.
func WriteEstimatesCSV(w io.Writer, e *Estimates) error {
	cw := csv.NewWriter(w)
	header := append(append(append([]string(nil), e.Index...), e.Coefficients...), e.Metrics...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range e.Rows {
		rec := append([]string(nil), r.Key...)
		for _, c := range e.Coefficients {
			switch c {
			case ColT0:
				rec = append(rec, formatDate(r.T0))
			case ColT1:
				rec = append(rec, formatDate(r.T1))
			case ColC0:
				rec = append(rec, formatFloat(r.C0))
			default:
				rec = append(rec, "")
			}
		}
		for _, m := range e.Metrics {
			v, ok := r.Metrics[m]
			if !ok {
				v = math.NaN()
			}
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
