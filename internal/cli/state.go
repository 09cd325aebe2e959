package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/model"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <player-id>",
		Short: "Show the snapshot a player would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snapshot model.RaceSnapshot

			path := "/api/v1/players/" + url.PathEscape(args[0]) + "/state"
			if err := client.Get(path, &snapshot); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(snapshot)
			return nil
		},
	}
}
