package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/model"
	"github.com/KaramelBytes/edsteva-cli/internal/utils"
	"github.com/spf13/cobra"
)

// tableFlags are the reader options shared by every command reading a table.
type tableFlags struct {
	delimiter string
	decimal   string
	thousands string
	sheet     string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',', ';' or 'tab' (default: by extension)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator: '.' or 'comma' (default: auto)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator: ',', '.' or 'space'")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
}

func (f *tableFlags) options() (dataset.ReadOptions, error) {
	var opt dataset.ReadOptions
	opt.Sheet = f.sheet
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

// loadPredictor reads a predictor table keyed on index, using the configured
// date and completeness columns.
func loadPredictor(path string, index []string, tf *tableFlags) (*dataset.Predictor, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	opt, err := tf.options()
	if err != nil {
		return nil, err
	}
	t, err := dataset.LoadTable(path, opt)
	if err != nil {
		return nil, err
	}
	cols := dataset.DefaultColumns(index)
	cols.X, cols.Y = c.XCol, c.YCol
	p, err := dataset.PredictorFromTable(t, cols, opt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	debugf("read %d rows from %s", p.Len(), path)
	return p, nil
}

// writeOutput renders with write into path, or stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func openStore() (*model.Store, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	dir, err := utils.ExpandHome(c.CacheDir)
	if err != nil {
		return nil, err
	}
	return &model.Store{Dir: dir}, nil
}

func indexOrDefault(flag, fallback []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return fallback
}
