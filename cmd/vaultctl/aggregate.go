package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/aggregate"
	"liquidityVault/internal/config"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" && cfg.PGDSN == "" {
		return fmt.Errorf("an output file or pg dsn is required")
	}
	windowSeconds := uint64(cfg.Window.Seconds())
	if windowSeconds == 0 {
		return fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, progress, closeOutputs, err := openMetricsOutputs(ctx, cfg, windowSeconds)
	if err != nil {
		return err
	}
	defer closeOutputs()

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("states", cfg.States),
		zap.String("out", cfg.Out),
		zap.String("pg", redactDSN(cfg.PGDSN)),
		zap.Duration("window", cfg.Window),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		StateStore:    progress,
	}, sinks, logger)
	return agg.Run(ctx, cfg.Input, cfg.States)
}

// openMetricsOutputs builds the sinks a run writes to. Progress goes to
// the state file when one is given, otherwise to postgres, keyed by
// window size so different windows resume independently.
func openMetricsOutputs(ctx context.Context, cfg config.AggregateConfig, windowSeconds uint64) (storage.MetricsFanout, aggregate.StateStore, func(), error) {
	var (
		sinks    storage.MetricsFanout
		progress aggregate.StateStore
		closer   = func() {}
	)
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlMetrics(cfg.Out))
	}
	if cfg.StateFile != "" {
		progress = &aggregate.FileStateStore{Path: cfg.StateFile}
	}
	if cfg.PGDSN == "" {
		return sinks, progress, closer, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	sinks = append(sinks, store)
	if progress == nil {
		progress = &aggregate.DBStateStore{Store: store, Name: fmt.Sprintf("aggregator:%d", windowSeconds)}
	}
	return sinks, progress, store.Close, nil
}

// redactDSN keeps enough of a connection string to tell databases apart
// in logs, without the password.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	pc, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "invalid"
	}
	return fmt.Sprintf("%s@%s:%d/%s", pc.User, pc.Host, pc.Port, pc.Database)
}
