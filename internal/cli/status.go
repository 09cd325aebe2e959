package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/api/response"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the coordinator is tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Status

			if err := client.Get("/api/v1/status", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
