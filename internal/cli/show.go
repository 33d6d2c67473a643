package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"poke-platform/internal/app"
)

var (
	showKind  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent runs, today's proposals, or holdings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Kind:  showKind,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showKind, "kind", "runs", "What to display: runs, proposals, or holdings")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
}
