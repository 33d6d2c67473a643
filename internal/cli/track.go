package cli

import (
	"github.com/spf13/cobra"

	"poke-platform/internal/app"
)

var (
	trackRarity     string
	trackAssets     []string
	trackDeactivate bool
	trackList       bool
	trackLimit      int
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Curate the tracked asset set",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.TrackOptions{
			RarityPattern: trackRarity,
			AssetIDs:      trackAssets,
			Deactivate:    trackDeactivate,
			List:          trackList,
			Limit:         trackLimit,
		}
		return getApp().Track(cmd.Context(), opts)
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackRarity, "rarity", "", "Track assets whose rarity matches this SQL LIKE pattern")
	trackCmd.Flags().StringSliceVar(&trackAssets, "assets", nil, "Asset ids to (de)activate")
	trackCmd.Flags().BoolVar(&trackDeactivate, "deactivate", false, "Deactivate instead of activate the given assets")
	trackCmd.Flags().BoolVar(&trackList, "list", false, "List tracked assets")
	trackCmd.Flags().IntVar(&trackLimit, "limit", 50, "Number of rows to list")
}
