package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Concentrated liquidity vault tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Value a deployed vault position and size a deposit",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	quoteCmd.Flags().String("pool", "", "V3 pool address")
	quoteCmd.Flags().String("vault", "", "vault address (position owner)")
	quoteCmd.Flags().String("share-token", "", "share token address, defaults to the vault")
	quoteCmd.Flags().Int32("lower", 0, "position lower tick")
	quoteCmd.Flags().Int32("upper", 0, "position upper tick")
	quoteCmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	quoteCmd.Flags().String("amount0-max", "", "token0 available for a deposit, in token units")
	quoteCmd.Flags().String("amount1-max", "", "token1 available for a deposit, in token units")
	quoteCmd.Flags().Uint16("manager-fee-bps", 1000, "manager share of fees in basis points")
	quoteCmd.Flags().Uint32("oracle-window", 300, "TWAP window in seconds")
	quoteCmd.Flags().Uint16("oracle-slippage-bps", 100, "allowed spot deviation from TWAP in basis points")
	quoteCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	quoteCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	quoteCmd.Flags().Int("rpc-rps", 20, "RPC requests per second, 0 for unlimited")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay vault scenarios against an in-memory pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().StringSlice("scenario", nil, "scenario files (comma-separated)")
	simulateCmd.Flags().String("out", "./data/vault_events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("states", "./data/vault_states.jsonl", "output state snapshots JSONL, empty to skip")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events, states and progress")
	simulateCmd.Flags().String("checkpoint", "", "optional checkpoint file for resuming without Postgres")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Roll vault events into windowed metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/vault_events.jsonl", "input events JSONL")
	aggregateCmd.Flags().String("states", "", "optional state snapshots JSONL for TVL and APR")
	aggregateCmd.Flags().Duration("window", time.Hour, "window size")
	aggregateCmd.Flags().String("out", "./data/vault_metrics.jsonl", "output metrics JSONL, empty to skip")
	aggregateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for metrics and progress")
	aggregateCmd.Flags().Int("batch-size", 1000, "metrics rows per write")
	aggregateCmd.Flags().String("state-file", "", "progress file, overrides Postgres progress")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
