package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/gophreview/internal/config"
)

type options struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "gophreview-client",
		Short:         "Join live document review sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (YAML or TOML)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultClientLogLevel, "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newJoinCmd(opts),
		newDiscoverCmd(opts),
		newTokenCmd(opts),
	)
	return rootCmd
}

// load читает конфигурацию; явно заданные флаги перекрывают файл и окружение
func (o *options) load(cmd *cobra.Command, bindings map[string]string) (*viper.Viper, error) {
	v, err := config.New(o.configFile)
	if err != nil {
		return nil, err
	}

	bindings["log.level"] = "log-level"
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return v, nil
}

func newLogger(v *viper.Viper) (*slog.Logger, error) {
	level := v.GetString("log.level")
	if level == "" {
		level = config.DefaultClientLogLevel
	}
	logger, err := config.Log{Level: level, Format: v.GetString("log.format")}.NewLogger(os.Stderr)
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
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gophreview client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n", Version, BuildDate, GitCommit)
			return err
		},
	}
}
