package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophreview/internal/config"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/master"
	"github.com/iudanet/gophreview/internal/server/middleware"
	"github.com/iudanet/gophreview/internal/server/storage"
	"github.com/iudanet/gophreview/internal/server/storage/fs"
	"github.com/iudanet/gophreview/internal/server/storage/sqlite"
)

const (
	stopTimeout = 10 * time.Second
	inviteTTL   = 24 * time.Hour
)

func newHostCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host [document]",
		Short: "Start a review session for a document",
		Long: `Start (or resume with --resume) a master review session.

Prints the admin token and a reviewer invite, then serves peers until SIGINT/SIGTERM.
On stop the annotations are written to the document and the session is persisted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.load(cmd, map[string]string{
				"listen.host":        "host",
				"listen.port":        "port",
				"session.name":       "name",
				"session.resume":     "resume",
				"session.autosave":   "autosave",
				"session.sidecar":    "sidecar",
				"journal.path":       "journal",
				"auth.passphrase":    "passphrase",
				"auth.require_token": "require-token",
				"discovery.enabled":  "discovery",
				"watch.document":     "watch",
			})
			if err != nil {
				return err
			}
			if len(args) == 1 {
				v.Set("session.document", args[0])
			}

			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, cmd, cfg, logger)
		},
	}

	cmd.Flags().String("host", "", "Listen host (empty = all interfaces)")
	cmd.Flags().Int("port", config.DefaultPort, "Listen port (0 = random)")
	cmd.Flags().String("name", "", "Master display name")
	cmd.Flags().String("resume", "", "Resume a persisted session by id")
	cmd.Flags().Duration("autosave", config.DefaultAutosave, "Autosave interval (0 disables)")
	cmd.Flags().Bool("sidecar", true, "Write annotations to <document>.review.yaml instead of inline")
	cmd.Flags().String("journal", "", "SQLite path for the admission journal (empty disables)")
	cmd.Flags().String("passphrase", "", "Require this passphrase to join")
	cmd.Flags().Bool("require-token", false, "Require an invite token to join")
	cmd.Flags().Bool("discovery", false, "Advertise the session on the local network (mDNS)")
	cmd.Flags().Bool("watch", false, "Reload the document when it changes on disk")
	return cmd
}

func runHost(ctx context.Context, cmd *cobra.Command, cfg *config.Server, logger *slog.Logger) error {
	sessions, err := fs.New(cfg.Storage.Dir, logger)
	if err != nil {
		return err
	}

	mcfg := master.Config{
		Storage:       sessions,
		Logger:        logger,
		Host:          cfg.Listen.Host,
		Port:          cfg.Listen.Port,
		DocumentPath:  cfg.Session.Document,
		MasterName:    cfg.Session.Name,
		Passphrase:    cfg.Auth.Passphrase,
		Secret:        []byte(cfg.Auth.Secret),
		AutoSave:      cfg.Session.Autosave,
		Sidecar:       cfg.Session.Sidecar,
		RequireToken:  cfg.Auth.RequireToken,
		Discovery:     cfg.Discovery.Enabled,
		WatchDocument: cfg.Watch.Document,
	}
	if mcfg.MasterName == "" {
		mcfg.MasterName = defaultMasterName()
	}

	if cfg.Session.Resume != "" {
		stored, err := sessions.LoadSession(ctx, cfg.Session.Resume)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found in %s", cfg.Session.Resume, sessions.Root())
			}
			return err
		}
		mcfg.InitialState = stored
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Ops, cfg.RateLimit.Window, logger)
	defer limiter.Stop()
	mcfg.Limiter = limiter

	if cfg.Journal.Path != "" {
		journal, err := sqlite.New(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Error("Failed to close journal", "error", err)
			}
		}()
		mcfg.Journal = journal
	}

	m, err := master.New(mcfg)
	if err != nil {
		return err
	}
	m.Subscribe(func(ev master.Event) { logEvent(logger, ev) })

	if err := m.Start(ctx); err != nil {
		var bindErr *master.BindError
		if errors.As(err, &bindErr) && bindErr.IsAddrInUse() {
			return fmt.Errorf("port %d is already in use, pick another with --port", cfg.Listen.Port)
		}
		return err
	}

	invite, err := m.IssueInvite(models.RoleReviewer, inviteTTL)
	if err != nil {
		logger.Warn("Failed to issue invite token", "error", err)
	}

	out := cmd.OutOrStdout()
	info := m.Info()
	fmt.Fprintf(out, "Session:     %s\n", info.SessionID)
	fmt.Fprintf(out, "Document:    %s\n", info.DocumentPath)
	fmt.Fprintf(out, "Join URL:    ws://%s/ws\n", m.Addr())
	fmt.Fprintf(out, "Admin token: %s\n", m.AdminToken())
	if invite != "" {
		fmt.Fprintf(out, "Invite:      %s\n", invite)
	}

	<-ctx.Done()
	logger.Info("Stopping session")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := m.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop session cleanly: %w", err)
	}
	fmt.Fprintf(out, "Session %s saved. Resume with: gophreview-server host --resume %s\n", info.SessionID, info.SessionID)
	return nil
}

func defaultMasterName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return master.MasterPeerID
}

func logEvent(logger *slog.Logger, ev master.Event) {
	switch ev.Type {
	case master.EventBlockAdded, master.EventBlockUpdated, master.EventBlockDeleted:
		logger.Debug("Annotation changed", "event", ev.Type, "annotation_id", ev.AnnotationID, "origin", ev.Origin)
	case master.EventError:
		logger.Error("Session error", "error", ev.Err)
	case master.EventSaved:
		logger.Debug("Session saved")
	}
}
