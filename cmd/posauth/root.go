package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vndocker/pos-AI-community/config"
	"github.com/vndocker/pos-AI-community/logging"
)

// rootOptions holds global flags and the state loaded before every
// subcommand runs.
type rootOptions struct {
	EnvFile string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "posauth",
		Short:         "POS email one-time-code sign-in service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.load()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	o.cfg = cfg
	o.logger = logger
	return nil
}
