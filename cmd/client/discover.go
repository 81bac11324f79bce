package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophreview/internal/client/cli"
	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/discovery"
)

func newDiscoverCmd(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find review sessions on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.load(cmd, map[string]string{})
			if err != nil {
				return err
			}
			logger, err := newLogger(v)
			if err != nil {
				return err
			}
			return cli.RunDiscover(cmd.Context(), iocli.NewStdio(), discovery.Browse, timeout, logger)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to listen for announcements")
	return cmd
}
