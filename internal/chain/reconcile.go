package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// ReconcileConfig selects the token and holder to compare.
type ReconcileConfig struct {
	Token        common.Address
	Holder       common.Address
	MaxRetries   int
	RetryBackoff time.Duration
}

// Reconciliation is the outcome of one comparison at a pinned block.
type Reconciliation struct {
	Block     uint64
	BlockTime uint64
	Expected  *uint256.Int
	Observed  *uint256.Int
	// Difference is observed minus expected, as a signed decimal.
	Difference string
	InSync     bool
}

// Reconciler compares journal-derived credit holdings with an ERC20 balance.
type Reconciler struct {
	cfg    ReconcileConfig
	logger *zap.Logger

	head      func(ctx context.Context) (uint64, error)
	blockTime func(ctx context.Context, number uint64) (uint64, error)
	balanceAt func(ctx context.Context, block uint64) (*uint256.Int, error)
}

func NewReconciler(cfg ReconcileConfig, client *Client, logger *zap.Logger) (*Reconciler, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.Token == (common.Address{}) {
		return nil, fmt.Errorf("token address is required")
	}
	if cfg.Holder == (common.Address{}) {
		return nil, fmt.Errorf("holder address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		cfg:       cfg,
		logger:    logger,
		head:      client.LatestBlockNumber,
		blockTime: client.BlockTimestamp,
		balanceAt: func(ctx context.Context, block uint64) (*uint256.Int, error) {
			return BalanceOf(ctx, client, cfg.Token, cfg.Holder, new(big.Int).SetUint64(block))
		},
	}, nil
}

// Check reads the holder balance at the latest block and compares it to expected.
func (r *Reconciler) Check(ctx context.Context, expected *uint256.Int) (Reconciliation, error) {
	if expected == nil {
		expected = new(uint256.Int)
	}

	var block uint64
	err := WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		block, err = r.head(ctx)
		return err
	})
	if err != nil {
		return Reconciliation{}, fmt.Errorf("latest block: %w", err)
	}

	var observed *uint256.Int
	err = WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		observed, err = r.balanceAt(ctx, block)
		if err != nil {
			r.logger.Warn("balanceOf failed", zap.Uint64("block", block), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return Reconciliation{}, fmt.Errorf("balanceOf at %d: %w", block, err)
	}

	result := Reconciliation{
		Block:      block,
		Expected:   expected.Clone(),
		Observed:   observed,
		Difference: new(big.Int).Sub(observed.ToBig(), expected.ToBig()).String(),
		InSync:     observed.Eq(expected),
	}
	if ts, err := r.blockTime(ctx, block); err == nil {
		result.BlockTime = ts
	} else {
		r.logger.Debug("block timestamp unavailable", zap.Uint64("block", block), zap.Error(err))
	}

	r.logger.Info("reconcile",
		zap.String("token", r.cfg.Token.Hex()),
		zap.String("holder", r.cfg.Holder.Hex()),
		zap.Uint64("block", block),
		zap.String("expected", expected.Dec()),
		zap.String("observed", observed.Dec()),
		zap.Bool("in_sync", result.InSync),
	)
	return result, nil
}
