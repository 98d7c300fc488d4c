package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/episodecam/internal/adapters/repository"
	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/pkg/logger"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the episode database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), ctx, func(store *repository.SQLite) error {
				if err := store.MigrateUp(cmd.Context()); err != nil {
					return err
				}
				return printVersion(cmd, store)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), ctx, func(store *repository.SQLite) error {
				if err := store.MigrateDown(cmd.Context()); err != nil {
					return err
				}
				return printVersion(cmd, store)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), ctx, func(store *repository.SQLite) error {
				return printVersion(cmd, store)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, store *repository.SQLite) error {
	version, dirty, err := store.MigrateVersion(cmd.Context())
	if err != nil {
		return err
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", version, suffix)
	return nil
}

// withStore opens the configured database for the duration of fn.
func withStore(ctx context.Context, cc *commandContext, fn func(*repository.SQLite) error) error {
	cfg, err := cc.ensureConfig(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Get().Warn(ctx, "failed to close store", logger.Error(err))
		}
	}()
	return fn(store)
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.SQLite, error) {
	return repository.Open(ctx, cfg.Storage.Path,
		repository.WithBusyTimeout(cfg.Storage.BusyTimeout),
		repository.WithLogger(logger.Get().Named("repository")),
	)
}
