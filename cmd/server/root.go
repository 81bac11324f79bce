package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iudanet/gophreview/internal/config"
)

// options общие флаги всех команд
type options struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "gophreview-server",
		Short:         "Host live document review sessions",
		Long:          "gophreview-server hosts a review session for one document: peers join over websocket, add annotations, and the master validates and relays every change.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (YAML or TOML)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("storage-dir", "", "Directory for persisted sessions")

	rootCmd.AddCommand(
		newVersionCmd(),
		newHostCmd(opts),
		newSessionsCmd(opts),
	)
	return rootCmd
}

// load читает конфигурацию и привязывает флаги команды к ключам
func (o *options) load(cmd *cobra.Command, bindings map[string]string) (*viper.Viper, error) {
	v, err := config.New(o.configFile)
	if err != nil {
		return nil, err
	}

	all := map[string]string{
		"log.level":   "log-level",
		"log.format":  "log-format",
		"storage.dir": "storage-dir",
	}
	for key, name := range bindings {
		all[key] = name
	}
	for key, name := range all {
		if err := bindFlag(v, cmd.Flags().Lookup(name), key); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func bindFlag(v *viper.Viper, flag *pflag.Flag, key string) error {
	if flag == nil {
		return nil
	}
	// Привязываются только явно заданные флаги; умолчания задает config
	if !flag.Changed {
		return nil
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bind flag %s: %w", flag.Name, err)
	}
	return nil
}

func newLogger(cfg config.Log) (*slog.Logger, error) {
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, err := fmt.Fprintf(out, "gophreview server\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n", Version, BuildDate, GitCommit)
			return err
		},
	}
}
