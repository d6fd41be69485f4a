package cmd

import (
	"fmt"
	"io"
	"os"

	cfgpkg "github.com/KaramelBytes/edsteva-cli/internal/config"
	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/loss"
	"github.com/KaramelBytes/edsteva-cli/internal/metrics"
	"github.com/KaramelBytes/edsteva-cli/internal/model"
	"github.com/KaramelBytes/edsteva-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	fitKind      string
	fitName      string
	fitAlgorithm string
	fitLoss      string
	fitMinWidth  int
	fitQuantile  float64
	fitMetrics   []string
	fitIndex     []string
	fitStart     string
	fitEnd       string
	fitOutput    string
	fitNoSave    bool
	fitReport    bool
	fitTable     tableFlags
)

var fitCmd = &cobra.Command{
	Use:   "fit <predictor-file>",
	Short: "Fit step or rectangle breakpoints to every partition",
	Long: `Fits t_0 and c_0 (and t_1 for rectangle models) to each partition of a predictor table,
computes the fit metrics, and saves the model under --name in the cache directory.`,
	Example: `  edsteva fit predictor.csv --model step --name visits
  edsteva fit predictor.csv --model rectangle --name notes --min-width 6 -o estimates.csv
  edsteva fit predictor.csv --algorithm quantile --quantile 0.9 --no-save --report`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if fitName == "" && !fitNoSave {
			return fmt.Errorf("--name is required unless --no-save is set")
		}
		kind, err := model.ParseKind(fitKind)
		if err != nil {
			return err
		}
		params, err := fitParams(cmd, c)
		if err != nil {
			return err
		}
		index := indexOrDefault(fitIndex, c.Index)
		pred, err := loadPredictor(args[0], index, &fitTable)
		if err != nil {
			return err
		}
		m, err := model.New(kind, index)
		if err != nil {
			return err
		}
		debugf("fitting %s/%s with loss %s on %d rows", kind, params.Algorithm, params.Loss, pred.Len())
		if err := m.Fit(cmd.Context(), pred, params); err != nil {
			return fmt.Errorf("fit: %w", err)
		}
		est := m.Estimates()
		fmt.Printf("✓ Fitted %s model on %d partition(s)\n", kind, est.Len())
		if n := len(m.Skipped); n > 0 {
			fmt.Fprintf(os.Stderr, "⚠ Warning: no threshold placed for %d partition(s)\n", n)
			for _, k := range m.Skipped {
				debugf("no threshold: %s", dataset.FormatKey(k))
			}
		}

		if !fitNoSave {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Save(fitName, m); err != nil {
				return fmt.Errorf("save model: %w", err)
			}
			path, _ := store.Path(fitName)
			fmt.Printf("✓ Saved model %q to %s\n", fitName, path)
		}
		if fitOutput != "" {
			if err := writeOutput(fitOutput, func(w io.Writer) error { return dataset.WriteEstimatesCSV(w, est) }); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote estimates to %s\n", fitOutput)
		}
		if fitReport {
			r, err := report.Build(fitName, est, 0)
			if err != nil {
				return err
			}
			fmt.Println(r.Markdown())
		}
		return nil
	},
}

// fitParams merges fit flags over the configuration.
func fitParams(cmd *cobra.Command, c *cfgpkg.Global) (model.Params, error) {
	f := cmd.Flags()
	algo := c.Algorithm
	if f.Changed("algorithm") {
		algo = fitAlgorithm
	}
	lossName := c.LossFunction
	if f.Changed("loss") {
		lossName = fitLoss
	}
	p := model.Params{
		MinRectWidth: c.MinRectMonthWidth,
		Quantile:     c.Quantile,
		Jobs:         c.NJobs,
	}
	var err error
	if p.Algorithm, err = model.ParseAlgorithm(algo); err != nil {
		return p, err
	}
	if p.Loss, err = loss.Parse(lossName); err != nil {
		return p, err
	}
	if f.Changed("min-width") {
		if fitMinWidth < 1 {
			return p, fmt.Errorf("--min-width must be >= 1")
		}
		p.MinRectWidth = fitMinWidth
	}
	if f.Changed("quantile") {
		if fitQuantile <= 0 || fitQuantile > 1 {
			return p, fmt.Errorf("--quantile must be in (0, 1]")
		}
		p.Quantile = fitQuantile
	}
	if p.Metrics, err = metrics.ParseList(fitMetrics); err != nil {
		return p, err
	}
	if p.Start, p.End, err = c.Window(); err != nil {
		return p, err
	}
	if f.Changed("start") {
		if p.Start, err = cfgpkg.ParseMonth(fitStart); err != nil {
			return p, fmt.Errorf("--start: %w", err)
		}
	}
	if f.Changed("end") {
		if p.End, err = cfgpkg.ParseMonth(fitEnd); err != nil {
			return p, fmt.Errorf("--end: %w", err)
		}
	}
	return p, nil
}

func init() {
	rootCmd.AddCommand(fitCmd)
	fitCmd.Flags().StringVar(&fitKind, "model", "step", "step or rectangle")
	fitCmd.Flags().StringVar(&fitName, "name", "", "name the fitted model is saved under")
	fitCmd.Flags().StringVar(&fitAlgorithm, "algorithm", "", "loss_minimization or quantile (overrides config)")
	fitCmd.Flags().StringVar(&fitLoss, "loss", "", "l1 or l2 (overrides config)")
	fitCmd.Flags().IntVar(&fitMinWidth, "min-width", 0, "minimum rectangle width in months (overrides config)")
	fitCmd.Flags().Float64Var(&fitQuantile, "quantile", 0, "quantile for the quantile algorithm (overrides config)")
	fitCmd.Flags().StringSliceVar(&fitMetrics, "metrics", nil, "metrics to compute: error, error_after_t0, error_between_t0_t1")
	fitCmd.Flags().StringSliceVar(&fitIndex, "index", nil, "partition columns (default: config index)")
	fitCmd.Flags().StringVar(&fitStart, "start", "", "first month of the study window, YYYY-MM")
	fitCmd.Flags().StringVar(&fitEnd, "end", "", "last month of the study window, YYYY-MM")
	fitCmd.Flags().StringVarP(&fitOutput, "output", "o", "", "write the estimates CSV here")
	fitCmd.Flags().BoolVar(&fitNoSave, "no-save", false, "do not store the fitted model")
	fitCmd.Flags().BoolVar(&fitReport, "report", false, "print a Markdown summary of the estimates")
	fitTable.register(fitCmd)
}
