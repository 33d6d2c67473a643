package cli

import (
	"github.com/spf13/cobra"

	"poke-platform/internal/app"
)

var (
	chartAssetID   string
	chartVariant   string
	chartDays      int
	chartOut       string
	chartMaxPoints int
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render an asset's market price and smoothed level as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ChartOptions{
			AssetID:   chartAssetID,
			Variant:   chartVariant,
			Days:      chartDays,
			OutPath:   chartOut,
			MaxPoints: chartMaxPoints,
		}
		return getApp().Chart(cmd.Context(), opts)
	},
}

func init() {
	chartCmd.Flags().StringVar(&chartAssetID, "asset", "", "Asset id (e.g. ptcg:base1-4)")
	chartCmd.Flags().StringVar(&chartVariant, "variant", "", "Variant to chart (defaults to preference order)")
	chartCmd.Flags().IntVar(&chartDays, "days", 0, "History window in days (defaults to strategy lookback)")
	chartCmd.Flags().StringVar(&chartOut, "out", "", "Path to write the PNG")
	chartCmd.Flags().IntVar(&chartMaxPoints, "max-points", 0, "Maximum chart points (defaults to config)")
}
