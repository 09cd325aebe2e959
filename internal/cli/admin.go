package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/api/middleware"
	"github.com/mcoot/racecoord/internal/api/response"
	"github.com/mcoot/racecoord/internal/model"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (requires the server's admin token)",
	}
	cmd.PersistentFlags().StringVar(&cfg.AdminToken, "token", cfg.AdminToken, "Admin token (env: RACECTL_ADMIN_TOKEN)")

	cmd.AddCommand(newAdminOverviewCmd())
	cmd.AddCommand(newAdminRoomCmd("abort-match <room-code>", "Discard the room's active match and restore it as pending", "abort-match"))
	cmd.AddCommand(newAdminRoomCmd("remove-disconnected <room-code>", "Remove every disconnected member of the room now", "remove-disconnected"))
	cmd.AddCommand(newAdminPlayerCmd("kick <room-code> <player-id>", "Kick a player from the room", "kick"))
	cmd.AddCommand(newAdminPlayerCmd("force-leave <room-code> <player-id>", "Mark a player LEAVE in the room's active match", "leave-match"))

	return cmd
}

// adminClient returns the shared client carrying the admin token
func adminClient() (*Client, error) {
	if cfg.AdminToken == "" {
		return nil, errors.New("admin token is required (--token or RACECTL_ADMIN_TOKEN)")
	}
	return client.WithHeader(middleware.AdminTokenHeader, cfg.AdminToken), nil
}

func newAdminOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "List every room and every player outside a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := adminClient()
			if err != nil {
				return err
			}

			var result model.AdminOverview
			if err := c.Get("/api/v1/admin/overview", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newAdminRoomCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/admin/rooms/%s/%s", url.PathEscape(args[0]), action)
			return runAdminAction(path)
		},
	}
}

func newAdminPlayerCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/admin/rooms/%s/players/%s/%s",
				url.PathEscape(args[0]), url.PathEscape(args[1]), action)
			return runAdminAction(path)
		},
	}
}

func runAdminAction(path string) error {
	c, err := adminClient()
	if err != nil {
		return err
	}

	var result response.AdminAction
	if err := c.Post(path, &result); err != nil {
		return err
	}

	NewOutput(cfg.Output).Print(result)
	return nil
}
