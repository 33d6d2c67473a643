package cli

import (
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduled daily pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Daemon(cmd.Context())
	},
}
