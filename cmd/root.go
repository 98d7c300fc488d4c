package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/pkg/logger"
)

// commandContext lazily loads configuration shared by every subcommand.
type commandContext struct {
	configPath *string
	cfg        *config.Config
}

func newCommandContext(configPath *string) *commandContext {
	return &commandContext{configPath: configPath}
}

// ensureConfig loads the config (defaults -> optional file -> env) once and
// initializes logging from it.
func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(ctx, *c.configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	serveCmd := newServeCommand(ctx)
	rootCmd := &cobra.Command{
		Use:           "episodecam",
		Short:         "Motion-triggered camera episode recorder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd.Context())
			return err
		},
		// serve is the default action.
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $"+config.EnvConfigPath+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newEpisodesCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))

	return rootCmd
}
