package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/report"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List, inspect or delete stored models",
	Example: `  edsteva models list
  edsteva models show visits
  edsteva models show visits --csv
  edsteva models delete visits`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored models",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		infos, err := store.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Printf("No models in %s\n", store.Dir)
			return nil
		}
		fmt.Printf("Models in %s:\n", store.Dir)
		for _, in := range infos {
			fmt.Printf("- %s (%s, %s): %d partition(s) over [%s], fitted %s\n",
				in.Name, in.Kind, in.Algorithm, in.Partitions, strings.Join(in.Index, ", "),
				in.FittedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var modelsShowCSV bool

var modelsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a stored model's estimates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		m, err := store.Load(args[0])
		if err != nil {
			return err
		}
		est := m.Estimates()
		if modelsShowCSV {
			return dataset.WriteEstimatesCSV(os.Stdout, est)
		}
		fmt.Printf("Fit: %s (%s)\n", m.FitID, m.FittedAt.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Algorithm: %s, loss %s\n", m.Params.Algorithm, m.Params.Loss)
		r, err := report.Build(args[0], est, 0)
		if err != nil {
			return err
		}
		fmt.Println(r.Markdown())
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted model %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsShowCmd.Flags().BoolVar(&modelsShowCSV, "csv", false, "print the estimates as CSV")
}
