package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carbonPool/internal/config"
	"carbonPool/internal/eventlog"
	"carbonPool/internal/model"
	"carbonPool/internal/replay"
	"carbonPool/internal/storage/journal"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, info, err := openExistingJournal(cfg.JournalPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var pricing *replay.Pricing
	if info != nil {
		if pricing, err = replay.PricingFromInfo(*info); err != nil {
			return fmt.Errorf("stored pool info: %w", err)
		}
	}

	verifier, err := replay.NewVerifier(replay.Config{
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		Pricing:           pricing,
		MaxViolations:     cfg.MaxViolations,
	}, store, logger)
	if err != nil {
		return err
	}

	report, err := verifier.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Out != "" {
		if err := writeJSON(cfg.Out, report); err != nil {
			return err
		}
	}
	for _, v := range report.Violations {
		logger.Warn("violation", zap.Uint64("seq", v.Seq), zap.String("kind", v.Kind), zap.String("detail", v.Detail))
	}
	if !report.OK() {
		return fmt.Errorf("journal failed verification: %d violations, state match %t", len(report.Violations), report.Matches)
	}
	return nil
}

// openExistingJournal opens a journal written by serve. The encoder is only
// used on writes, so a zero pool address is fine here.
func openExistingJournal(path string, logger *zap.Logger) (*journal.Store, *model.PoolInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("journal %s: %w", path, err)
	}
	encoder, err := eventlog.NewEncoder(0, common.Address{})
	if err != nil {
		return nil, nil, err
	}
	store, err := journal.Open(path, encoder, logger.Named("journal"))
	if err != nil {
		return nil, nil, err
	}
	info, ok, err := store.LoadPoolInfo()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if !ok {
		return store, nil, nil
	}
	return store, &info, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
