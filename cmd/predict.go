package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	predName   string
	predOutput string
	predTable  tableFlags
)

var predictCmd = &cobra.Command{
	Use:   "predict <predictor-file>",
	Short: "Reconstruct c_hat for a predictor table with a stored model",
	Long: `Joins the estimates of a stored model onto a predictor table by partition and writes it back
with a c_hat column. Every partition of the table must have been fitted.`,
	Example: `  edsteva predict predictor_2023.csv --name visits -o prediction.csv`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if predName == "" {
			return fmt.Errorf("--name is required")
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		m, err := store.Load(predName)
		if err != nil {
			return err
		}
		pred, err := loadPredictor(args[0], m.Index, &predTable)
		if err != nil {
			return err
		}
		out, err := m.Predict(pred)
		if err != nil {
			return fmt.Errorf("predict: %w", err)
		}
		if err := writeOutput(predOutput, func(w io.Writer) error { return dataset.WritePredictorCSV(w, out, true) }); err != nil {
			return err
		}
		if predOutput != "" {
			fmt.Printf("✓ Wrote %d predicted rows to %s\n", out.Len(), predOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predName, "name", "", "stored model to use")
	predictCmd.Flags().StringVarP(&predOutput, "output", "o", "", "write the prediction CSV here instead of stdout")
	predTable.register(predictCmd)
}
