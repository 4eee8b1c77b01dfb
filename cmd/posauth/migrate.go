package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, closeStore, err := openStore(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			opts.logger.Info("migrations applied", slog.String("store", opts.cfg.Store))
			return nil
		},
	}
}
