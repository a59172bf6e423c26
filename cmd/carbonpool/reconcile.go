package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carbonPool/internal/chain"
	"carbonPool/internal/config"
	"carbonPool/internal/ledger"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	token, err := config.ParseAddress(cfg.Token)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, info, err := openExistingJournal(cfg.JournalPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if info == nil {
		return fmt.Errorf("journal %s has no pool info", cfg.JournalPath)
	}

	poolAddr, err := config.ParseAddress(info.Address)
	if err != nil {
		return fmt.Errorf("stored pool address: %w", err)
	}
	holder := poolAddr
	if cfg.Holder != "" {
		if holder, err = config.ParseAddress(cfg.Holder); err != nil {
			return fmt.Errorf("holder: %w", err)
		}
	}

	credits := ledger.NewToken("credits", logger.Named("credits"))
	store.Track(credits)
	if _, err := store.RestoreLedgers(); err != nil {
		return fmt.Errorf("restore ledgers: %w", err)
	}
	expected, err := credits.BalanceOf(ctx, poolAddr)
	if err != nil {
		return err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()
	if err := client.ExpectChainID(ctx, info.ChainID); err != nil {
		return err
	}

	reconciler, err := chain.NewReconciler(chain.ReconcileConfig{
		Token:        token,
		Holder:       holder,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, logger)
	if err != nil {
		return err
	}

	result, err := reconciler.Check(ctx, expected)
	if err != nil {
		return err
	}
	logger.Info("reconcile done",
		zap.Uint64("block", result.Block),
		zap.Uint64("block_time", result.BlockTime),
		zap.String("expected", result.Expected.Dec()),
		zap.String("observed", result.Observed.Dec()),
		zap.String("difference", result.Difference),
		zap.Bool("in_sync", result.InSync),
	)
	if !result.InSync {
		return fmt.Errorf("credit custody out of sync by %s at block %d", result.Difference, result.Block)
	}
	return nil
}
