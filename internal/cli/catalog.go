package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/services/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Target item catalog tools",
	}

	cmd.AddCommand(newCatalogCheckCmd())

	return cmd
}

func newCatalogCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a target item file the way the server loads it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			items, err := catalog.Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			NewOutput(cfg.Output).Print(CatalogReport{File: args[0], Count: len(items), Items: items})
			return nil
		},
	}
}
