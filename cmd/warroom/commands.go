package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"warroom/config"
	"warroom/core/appbootstrap"
	"warroom/core/utils"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "warroom",
		Short:         "WarRoom incident tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "config file path (environment is used when missing)")
	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newSeedCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return appbootstrap.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all data with generated demo incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			res, err := appbootstrap.Seed(cmd.Context(), cfg, logger, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d incidents\nSeeded %d timeline events\nSeeded %d alert configs\n", res.Incidents, res.TimelineEvents, res.AlertConfigs)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible data (0 = random)")
	return cmd
}

func bootstrap(opts *rootOptions) (*config.AppConfig, *utils.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, utils.NewLoggerWithConfig(cfg.AppEnv, cfg.LogLevel), nil
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return appbootstrap.Run(ctx, cfg, logger)
}
