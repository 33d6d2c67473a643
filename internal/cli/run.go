package cli

import (
	"github.com/spf13/cobra"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one valuation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateFlag(runDate)
		if err != nil {
			return err
		}
		return getApp().RunValuation(cmd.Context(), day)
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Run date (YYYY-MM-DD, defaults to today UTC)")
}
