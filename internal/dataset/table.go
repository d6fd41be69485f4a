package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ReadOptions controls how raw tables are read from disk.
type ReadOptions struct {
	// Delimiter for CSV. If 0, picks '\t' for .tsv and ',' otherwise.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// Table is a raw header + records view of a CSV or XLSX file.
type Table struct {
	Name    string
	Header  []string
	Records [][]string

	index map[string]int
}

// NewTable builds a table from an in-memory header and records.
func NewTable(name string, header []string, records [][]string) *Table {
	h := make([]string, len(header))
	for i, c := range header {
		h[i] = strings.TrimSpace(c)
	}
	return &Table{Name: name, Header: h, Records: records, index: headerIndex(h)}
}

// LoadTable reads a CSV/TSV or XLSX file depending on its extension.
func LoadTable(path string, opt ReadOptions) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return readXLSX(path, opt)
	}
	return readCSV(path, opt)
}

// Col returns the position of a column, case-insensitively.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.index[normName(name)]
	return i, ok
}

// Require fails with a *MissingColumnError naming every absent column.
func (t *Table) Require(table string, cols ...string) error {
	return requireColumns(table, t.Header, cols)
}

// Cell returns the trimmed value at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	rec := t.Records[row]
	if col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

func readCSV(path string, opt ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(filepath.Base(path), nil, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return NewTable(filepath.Base(path), header, records), nil
}

func readXLSX(path string, opt ReadOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheet := opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w\navailable sheets: %s",
			sheet, filepath.Base(path), err, strings.Join(f.GetSheetList(), ", "))
	}
	if len(rows) == 0 {
		return NewTable(filepath.Base(path), nil, nil), nil
	}
	return NewTable(filepath.Base(path), rows[0], rows[1:]), nil
}

func headerIndex(cols []string) map[string]int {
	out := make(map[string]int, len(cols))
	for i, c := range cols {
		out[normName(c)] = i
	}
	return out
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// ParseDate parses the common date layouts and truncates to the month.
func ParseDate(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, DateLayout, "2006-01", "2006/01/02", "2006/01",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "02/01/2006",
	}
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return MonthStart(t), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell honoring the locale options. Empty
// cells parse as NaN.
func ParseNumber(s string, opt ReadOptions) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if raw == "" {
		return math.NaN(), true
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
