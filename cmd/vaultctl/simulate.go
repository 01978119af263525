package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/scenario"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	scenarios := make([]scenario.Scenario, 0, len(cfg.Scenarios))
	for _, path := range cfg.Scenarios {
		sc, err := scenario.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, sc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := storage.Fanout{storage.NewJsonlStorage(cfg.Out, cfg.States)}
	var steps scenario.StepStore
	if cfg.Checkpoint != "" {
		steps = scenario.NewFileCheckpoint(cfg.Checkpoint)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
		steps = store
	}

	logger.Info("simulate start",
		zap.Strings("scenarios", cfg.Scenarios),
		zap.String("out", cfg.Out),
		zap.String("states", cfg.States),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	runner := scenario.NewRunner(sinks, steps, logger)
	for _, sc := range scenarios {
		res, err := runner.Run(ctx, sc)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		final := res.States[len(res.States)-1]
		logger.Info("scenario complete",
			zap.String("scenario", sc.Name),
			zap.String("vault", res.Vault.Hex()),
			zap.Int("steps", len(res.States)),
			zap.Int("replayed", res.Replayed),
			zap.Int32("tick_lower", final.TickLower),
			zap.Int32("tick_upper", final.TickUpper),
			zap.String("liquidity", final.Liquidity),
			zap.String("total_supply", final.TotalSupply),
		)
	}
	return nil
}
