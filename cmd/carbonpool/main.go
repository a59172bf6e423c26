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
		Use:          "carbonpool",
		Short:        "Carbon credit liquidity pool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", "", "optional .env file (defaults to ./.env when present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool service and HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("journal", "./data/journal", "pebble journal directory")
	serveCmd.Flags().String("events-out", "", "optional JSONL file receiving every committed event")
	serveCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the event archive")
	serveCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on event records")
	serveCmd.Flags().String("pool-address", "", "pool account address")
	serveCmd.Flags().String("owner", "", "pool owner address")
	serveCmd.Flags().String("issuer", "", "credit issuer address (defaults to owner)")
	serveCmd.Flags().String("exchange-rate", "1", "reserve units per credit unit")
	serveCmd.Flags().String("fee-numerator", "50", "fee numerator")
	serveCmd.Flags().String("fee-denominator", "10000", "fee denominator")
	serveCmd.Flags().StringSlice("genesis-reserve", nil, "reserve balances on first start (address=amount, comma-separated)")
	serveCmd.Flags().StringSlice("genesis-credits", nil, "credits issued on first start (address=amount, comma-separated)")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins")
	serveCmd.Flags().Bool("bind-shares", true, "bind the share ledger on first start")
	serveCmd.Flags().String("admin-token", "", "bearer token for admin and approval routes (empty disables them)")
	serveCmd.Flags().Duration("operation-wait", 5*time.Second, "longest a pool operation waits for the one in progress")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate the event log into window metrics",
		RunE:  runReport,
	}

	reportCmd.Flags().String("rpc", "", "optional RPC URL for credit token decimals")
	reportCmd.Flags().String("in", "./data/events.jsonl", "input event log JSONL")
	reportCmd.Flags().String("window", "1h", "aggregation window (e.g. 5m, 1h, 24h)")
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	reportCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	reportCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	reportCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	reportCmd.Flags().Uint("reserve-decimals", 0, "reserve currency decimals")
	reportCmd.Flags().Uint("credit-decimals", 0, "credit decimals")
	reportCmd.Flags().String("credit-token", "", "ERC20 credit token; its decimals override --credit-decimals")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-fold the journal and verify pool invariants",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("journal", "./data/journal", "pebble journal directory")
	replayCmd.Flags().Uint64("batch-size", 1000, "events per batch")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", false, "resume from the last verified event")
	replayCmd.Flags().Int("max-violations", 0, "stop after this many violations (0 = all)")
	replayCmd.Flags().String("out", "", "optional JSON report path")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare journal credit holdings with an on-chain ERC20 balance",
		RunE:  runReconcile,
	}

	reconcileCmd.Flags().String("rpc", "", "RPC URL")
	reconcileCmd.Flags().String("journal", "./data/journal", "pebble journal directory")
	reconcileCmd.Flags().String("token", "", "ERC20 credit token address")
	reconcileCmd.Flags().String("holder", "", "on-chain holder address (defaults to the pool address)")
	reconcileCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	reconcileCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	reconcileCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reconcileCmd)

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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
