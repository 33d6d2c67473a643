package cli

import (
	"github.com/spf13/cobra"
)

var extractDate string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract price snapshots from stored card documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateFlag(extractDate)
		if err != nil {
			return err
		}
		return getApp().ExtractPrices(cmd.Context(), day)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDate, "date", "", "Snapshot date (YYYY-MM-DD, defaults to today UTC)")
}
