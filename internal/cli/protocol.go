package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/protocol"
)

func newProtocolCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "List the websocket message catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var catalog protocol.Catalog
			if offline {
				catalog = protocol.BuildCatalog()
			} else if err := client.Get("/api/v1/protocol", &catalog); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(catalog)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Print the catalog built into this binary instead of asking the server")

	return cmd
}
