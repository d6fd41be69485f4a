package dataset

import (
	"fmt"
	"strings"
	"time"
)

// MissingColumnError reports required columns absent from a table.
type MissingColumnError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column(s) in %s table: %s", e.Table, strings.Join(e.Columns, ", "))
}

// DuplicateDateError reports a partition holding the same month twice.
type DuplicateDateError struct {
	Key  []string
	Date time.Time
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("duplicate date %s in partition %s", e.Date.Format(DateLayout), FormatKey(e.Key))
}

// requireColumns returns a *MissingColumnError naming every entry of want
// that is not in have (case-insensitive), or nil.
func requireColumns(table string, have, want []string) error {
	idx := headerIndex(have)
	var missing []string
	for _, w := range want {
		if _, ok := idx[normName(w)]; !ok {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Table: table, Columns: missing}
	}
	return nil
}
