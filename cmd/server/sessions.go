package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophreview/internal/config"
	"github.com/iudanet/gophreview/internal/server/storage/fs"
	"github.com/iudanet/gophreview/internal/server/storage/sqlite"
)

func newSessionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List persisted sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := openSessions(cmd, opts)
			if err != nil {
				return err
			}
			metas, err := sessions.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(metas) == 0 {
				_, err := fmt.Fprintln(out, "No saved sessions.")
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDOCUMENT\tMASTER\tUPDATED")
			for _, meta := range metas {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", meta.SessionID, meta.DocumentPath, meta.MasterName, meta.UpdatedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(newSessionsRmCmd(opts), newSessionsLogCmd(opts))
	return cmd
}

func newSessionsRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a persisted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := openSessions(cmd, opts)
			if err != nil {
				return err
			}
			if err := sessions.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Session deleted: %s\n", args[0])
			return err
		},
	}
}

func newSessionsLogCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Show admission decisions recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.load(cmd, map[string]string{"journal.path": "journal"})
			if err != nil {
				return err
			}
			path := v.GetString("journal.path")
			if path == "" {
				return fmt.Errorf("journal path is not configured, use --journal")
			}

			journal, err := sqlite.New(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			decisions, err := journal.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPEER\tACTION\tANNOTATION\tDECISION")
			for _, d := range decisions {
				decision := "admitted"
				if !d.Admitted {
					decision = "rejected: " + d.Reason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.CreatedAt.Format(time.DateTime), d.PeerID, d.Action, d.AnnotationID, decision)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("journal", "", "SQLite path of the admission journal")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many decisions (0 = all)")
	return cmd
}

func openSessions(cmd *cobra.Command, opts *options) (*fs.Storage, error) {
	v, err := opts.load(cmd, nil)
	if err != nil {
		return nil, err
	}
	dir := v.GetString("storage.dir")
	if dir == "" {
		dir = defaultStorageDir()
	}
	logger, err := newLogger(config.Log{Level: v.GetString("log.level"), Format: v.GetString("log.format")})
	if err != nil {
		return nil, err
	}
	return fs.New(dir, logger)
}

func defaultStorageDir() string {
	return filepath.Join(config.DefaultDataDir(), "sessions")
}
