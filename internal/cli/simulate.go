package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"poke-platform/internal/app"
)

var (
	simulateCSV    string
	simulateAsset  string
	simulateNotify bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the strategy over a CSV price series without persisting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCSV == "" {
			return errors.New("--csv must be provided")
		}

		opts := app.SimulateOptions{
			CSVPath: simulateCSV,
			AssetID: simulateAsset,
			Notify:  simulateNotify,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCSV, "csv", "", "CSV file with date,price rows")
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "", "Asset id to stamp on the simulated series")
	simulateCmd.Flags().BoolVar(&simulateNotify, "notify", false, "Push the result through the alert channel")
}
