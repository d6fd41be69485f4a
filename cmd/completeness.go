package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/edsteva-cli/internal/completeness"
	cfgpkg "github.com/KaramelBytes/edsteva-cli/internal/config"
	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	compMethod string
	compIndex  []string
	compDate   string
	compNum    string
	compDen    string
	compImpute bool
	compStart  string
	compEnd    string
	compOutput string
	compTable  tableFlags
)

var completenessCmd = &cobra.Command{
	Use:   "completeness <counts-file>",
	Short: "Turn monthly counts into a completeness predictor table",
	Long: `Reads raw monthly counts per partition and writes the predictor table (date, c, n_num, n_den)
consumed by fit. percentile and max divide each month by the partition's 99th percentile or
maximum; ratio divides by the paired denominator column. c is 0 where the divisor is 0.`,
	Example: `  edsteva completeness visits.csv --index care_site_id,stay_type --num-col n_visit -o predictor.csv
  edsteva completeness notes.xlsx --method ratio --num-col n_with_note --den-col n_visit --impute`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		method, err := completeness.ParseMethod(compMethod)
		if err != nil {
			return err
		}
		start, err := cfgpkg.ParseMonth(compStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		end, err := cfgpkg.ParseMonth(compEnd)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		if start.IsZero() && end.IsZero() {
			start, end, _ = c.Window()
		}
		opt, err := compTable.options()
		if err != nil {
			return err
		}
		t, err := dataset.LoadTable(args[0], opt)
		if err != nil {
			return err
		}
		cols := completeness.Columns{Index: indexOrDefault(compIndex, c.Index), Date: compDate, Num: compNum, Den: compDen}
		counts, err := completeness.CountsFromTable(t, cols, method, opt)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		counts.Between(start, end)
		if compImpute {
			before := len(counts.Rows)
			counts.ImputeMissingMonths(start, end)
			debugf("imputed %d missing months", len(counts.Rows)-before)
		}
		pred, err := completeness.Compute(counts, method)
		if err != nil {
			return err
		}
		if err := writeOutput(compOutput, func(w io.Writer) error { return dataset.WritePredictorCSV(w, pred, false) }); err != nil {
			return err
		}
		if compOutput != "" {
			fmt.Printf("✓ Wrote %d completeness rows (%s) to %s\n", pred.Len(), method, compOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completenessCmd)
	completenessCmd.Flags().StringVar(&compMethod, "method", "percentile", "percentile, max or ratio")
	completenessCmd.Flags().StringSliceVar(&compIndex, "index", nil, "partition columns (default: config index)")
	completenessCmd.Flags().StringVar(&compDate, "date-col", "date", "month column")
	completenessCmd.Flags().StringVar(&compNum, "num-col", "n_num", "numerator count column")
	completenessCmd.Flags().StringVar(&compDen, "den-col", "n_den", "denominator column (ratio only)")
	completenessCmd.Flags().BoolVar(&compImpute, "impute", false, "add zero-count rows for missing months")
	completenessCmd.Flags().StringVar(&compStart, "start", "", "first month kept, YYYY-MM (default: config start_date)")
	completenessCmd.Flags().StringVar(&compEnd, "end", "", "last month kept, YYYY-MM (default: config end_date)")
	completenessCmd.Flags().StringVarP(&compOutput, "output", "o", "", "write the predictor CSV here instead of stdout")
	compTable.register(completenessCmd)
}
