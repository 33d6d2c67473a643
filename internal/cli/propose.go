package cli

import (
	"github.com/spf13/cobra"
)

var proposeDate string

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Seed the day's trade proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateFlag(proposeDate)
		if err != nil {
			return err
		}
		return getApp().SeedProposals(cmd.Context(), day)
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposeDate, "date", "", "Proposal date (YYYY-MM-DD, defaults to today UTC)")
}
