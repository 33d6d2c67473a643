package cli

import (
	"github.com/spf13/cobra"
)

var universeDate string

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Sync the card metadata universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateFlag(universeDate)
		if err != nil {
			return err
		}
		return getApp().SyncUniverse(cmd.Context(), day)
	},
}

func init() {
	universeCmd.Flags().StringVar(&universeDate, "date", "", "Snapshot date (YYYY-MM-DD, defaults to today UTC)")
}
