package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iudanet/gophreview/internal/client/cli"
	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/client/session"
	"github.com/iudanet/gophreview/internal/client/storage/boltdb"
	"github.com/iudanet/gophreview/internal/config"
	"github.com/iudanet/gophreview/internal/models"
)

func newJoinCmd(opts *options) *cobra.Command {
	var (
		passphraseFile string
		askPassphrase  bool
		fresh          bool
	)

	cmd := &cobra.Command{
		Use:   "join [url]",
		Short: "Join a review session",
		Long: `Join a review session and read line commands from stdin.

Without a url the last joined session is used. The local replica is cached
per session, so edits made while offline are sent after reconnecting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.load(cmd, map[string]string{
				"server.url":      "url",
				"peer.id":         "id",
				"peer.name":       "name",
				"peer.role":       "role",
				"auth.token":      "token",
				"auth.passphrase": "passphrase",
				"cache.path":      "cache",
				"keepalive":       "keepalive",
			})
			if err != nil {
				return err
			}
			if len(args) == 1 {
				v.Set("server.url", args[0])
			}
			config.SetClientDefaults(v)

			cache, err := boltdb.New(cmd.Context(), v.GetString("cache.path"))
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			last, err := cli.LastSession(cmd.Context(), cache)
			if err != nil {
				return err
			}
			if last != nil {
				if v.GetString("server.url") == "" {
					v.Set("server.url", last.URL)
				}
				if v.GetString("peer.id") == "" && last.URL == v.GetString("server.url") {
					v.Set("peer.id", last.PeerID)
				}
			}

			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			logger, err := cfg.Log.NewLogger(os.Stderr)
			if err != nil {
				return err
			}

			console := iocli.NewStdio()
			passphrase, err := cli.ReadPassphrase(console, cli.Passphrases{
				FromFile: passphraseFile,
				FromArgs: cfg.Auth.Passphrase,
				Prompt:   askPassphrase,
			})
			if err != nil {
				return err
			}

			peerID := cfg.Peer.ID
			if peerID == "" {
				peerID = "peer-" + uuid.NewString()[:8]
			}

			s, err := session.New(session.Config{
				Cache:      cache,
				Logger:     logger,
				URL:        cfg.Server.URL,
				PeerID:     peerID,
				Name:       cfg.Peer.Name,
				Role:       models.Role(cfg.Peer.Role),
				Token:      cfg.Auth.Token,
				Passphrase: passphrase,
				Keepalive:  cfg.Keepalive,
			})
			if err != nil {
				return err
			}

			if err := cli.Restore(cmd.Context(), s, cache, cfg.Server.URL, fresh); err != nil {
				logger.Warn("Failed to restore cached replica", "error", err)
			}
			defer cli.Remember(s, cache, cfg.Server.URL, logger)()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			console.Printf("Joining %s as %s...\n", cfg.Server.URL, peerID)
			return cli.New(s, console).Run(ctx)
		},
	}

	cmd.Flags().String("url", "", "Session websocket url, e.g. ws://host:4455/ws")
	cmd.Flags().String("id", "", "Peer id (default: remembered or random)")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("role", string(models.RoleReviewer), "Requested role: reviewer or viewer")
	cmd.Flags().String("token", "", "Invite token")
	cmd.Flags().String("passphrase", "", "Session passphrase (prefer --passphrase-file or the prompt)")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "Read the session passphrase from a file")
	cmd.Flags().BoolVar(&askPassphrase, "ask-passphrase", false, "Prompt for the session passphrase")
	cmd.Flags().String("cache", filepath.Join(config.DefaultDataDir(), "client.db"), "Local cache path")
	cmd.Flags().Duration("keepalive", config.DefaultKeepalive, "Keepalive ping interval")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Drop the cached replica of this session before joining")
	return cmd
}
