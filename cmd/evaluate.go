package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/metrics"
	"github.com/KaramelBytes/edsteva-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	evalName    string
	evalMetrics []string
	evalOutput  string
	evalTable   tableFlags
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <predictor-file>",
	Short: "Score a stored model against a predictor table",
	Long: `Recomputes error metrics of a stored model on another predictor table, for instance a newer
extraction of the same partitions, and prints the summary. The stored model is not modified.`,
	Example: `  edsteva evaluate predictor_2023.csv --name visits
  edsteva evaluate predictor_2023.csv --name visits --metrics error,error_after_t0 -o scores.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if evalName == "" {
			return fmt.Errorf("--name is required")
		}
		names, err := metrics.ParseList(evalMetrics)
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		m, err := store.Load(evalName)
		if err != nil {
			return err
		}
		pred, err := loadPredictor(args[0], m.Index, &evalTable)
		if err != nil {
			return err
		}
		est, err := m.Evaluate(pred, names)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		if evalOutput != "" {
			if err := writeOutput(evalOutput, func(w io.Writer) error { return dataset.WriteEstimatesCSV(w, est) }); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote scores to %s\n", evalOutput)
		}
		r, err := report.Build(evalName, est, 0)
		if err != nil {
			return err
		}
		fmt.Println(r.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalName, "name", "", "stored model to score")
	evaluateCmd.Flags().StringSliceVar(&evalMetrics, "metrics", nil, "metrics to compute (default: the model's own)")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "write the scored estimates CSV here")
	evalTable.register(evaluateCmd)
}
