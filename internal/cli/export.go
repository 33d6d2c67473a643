package cli

import (
	"github.com/spf13/cobra"

	"poke-platform/internal/app"
)

var exportDate string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export table snapshots as CSV (and to S3 when configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateFlag(exportDate)
		if err != nil {
			return err
		}
		return getApp().Export(cmd.Context(), app.ExportOptions{Date: day})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Snapshot date (YYYY-MM-DD, defaults to today UTC)")
}
