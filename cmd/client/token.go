package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophreview/internal/client/api"
	"github.com/iudanet/gophreview/internal/client/cli"
	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/models"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		adminToken string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [url]",
		Short: "Issue an invite token (requires the master's admin token)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.load(cmd, map[string]string{"server.url": "url"})
			if err != nil {
				return err
			}
			if len(args) == 1 {
				v.Set("server.url", args[0])
			}
			url := v.GetString("server.url")
			if url == "" {
				return fmt.Errorf("session url is required")
			}
			if adminToken == "" {
				return fmt.Errorf("--admin-token is required")
			}

			base, err := cli.HTTPBase(url)
			if err != nil {
				return fmt.Errorf("invalid session url: %w", err)
			}
			client := api.NewClient(base).WithToken(adminToken)
			return cli.RunToken(cmd.Context(), iocli.NewStdio(), client, models.Role(role), ttl)
		},
	}

	cmd.Flags().String("url", "", "Session websocket url")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "Admin token printed by the master")
	cmd.Flags().StringVar(&role, "role", string(models.RoleReviewer), "Invite role: reviewer or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Invite lifetime")
	return cmd
}
