package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbonPool/internal/chain"
	"carbonPool/internal/eventlog"
	"carbonPool/internal/model"
	"carbonPool/internal/storage"
	"carbonPool/internal/storage/postgres"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds   uint64
	BatchSize       int
	RecomputeFrom   uint64
	StateStore      StateStore
	ReserveDecimals uint8
	CreditDecimals  uint8
	// CreditToken, when set with a chain client, overrides CreditDecimals with
	// the on-chain ERC20 decimals.
	CreditToken string
}

// MetricsSink receives flushed window metrics.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator folds journaled pool events into per-window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	chainClient  *chain.Client
	decoder      *eventlog.Decoder
	logger       *zap.Logger
	tokenMeta    func(ctx context.Context, token common.Address) (model.TokenMeta, error)
	accumulators map[string]*Accumulator
	reserves     map[string]*big.Int
	lastSeq      map[string]uint64
}

func NewAggregator(cfg Config, store *postgres.Store, chainClient *chain.Client, logger *zap.Logger) (*Aggregator, error) {
	var sink MetricsSink
	if store != nil {
		sink = store
	}
	return newAggregator(cfg, sink, chainClient, logger)
}

func newAggregator(cfg Config, sink MetricsSink, chainClient *chain.Client, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := eventlog.NewDecoder()
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		cfg:          cfg,
		sink:         sink,
		chainClient:  chainClient,
		decoder:      decoder,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		reserves:     make(map[string]*big.Int),
		lastSeq:      make(map[string]uint64),
	}
	if chainClient != nil {
		a.tokenMeta = func(ctx context.Context, token common.Address) (model.TokenMeta, error) {
			return chain.FetchTokenMeta(ctx, chainClient, token)
		}
	}
	return a, nil
}

// Run executes aggregation over an event log JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}
	a.resolveCreditDecimals(ctx)

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	err = storage.ReadLogRecords(inputPath, func(record model.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		// Every event feeds the running reserve; the log must be gap-free from seq 1.
		key := poolKey(record.Address)
		if want := a.lastSeq[key] + 1; record.Seq != want {
			return fmt.Errorf("pool %s: event log has seq %d where %d was expected", record.Address, record.Seq, want)
		}
		a.lastSeq[key] = record.Seq

		ev, err := a.decoder.PoolEvent(record)
		if err != nil {
			failed++
			a.logger.Warn("decode event", zap.Uint64("seq", record.Seq), zap.Error(err))
			return nil
		}

		reserve := a.reserves[key]
		if reserve == nil {
			reserve = big.NewInt(0)
			a.reserves[key] = reserve
		}

		if record.Timestamp > startTs {
			windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
			windowEnd := windowStart + a.cfg.WindowSeconds

			acc := a.accumulators[key]
			if acc != nil && acc.WindowStart != windowStart {
				batch = append(batch, a.flushAccumulator(acc))
				windows++
				acc = nil
			}
			if acc == nil {
				acc = NewAccumulator(record.ChainID, record.Address, windowStart, windowEnd)
				a.accumulators[key] = acc
			}
			if err := acc.AddEvent(ev); err != nil {
				failed++
				a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", string(ev.Kind)))
				return nil
			}
			if record.Timestamp > maxTs {
				maxTs = record.Timestamp
			}
		} else {
			skipped++
		}
		// The running reserve spans the whole log so closing balances are exact.
		reserve.Add(reserve, reserveDelta(ev))

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for key, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
		delete(a.accumulators, key)
	}
	if err := a.flushBatch(ctx, batch); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatch(ctx context.Context, batch []model.PoolWindowMetrics) error {
	if len(batch) == 0 {
		return nil
	}
	return a.sink.UpsertWindowMetrics(ctx, batch)
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	reserve := a.reserves[poolKey(acc.PoolAddress)]
	var closing *string
	if reserve != nil {
		val := formatTokenAmount(reserve, a.cfg.ReserveDecimals)
		closing = &val
	}
	feeYield := computeFeeYield(acc.Fees, reserve)

	return model.PoolWindowMetrics{
		ChainID:        acc.ChainID,
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		TradeCount:     acc.TradeCount,
		BuyCount:       acc.BuyCount,
		SellCount:      acc.SellCount,
		CreditVolume:   formatTokenAmount(acc.CreditVolume, a.cfg.CreditDecimals),
		ReserveVolume:  formatTokenAmount(acc.ReserveVolume, a.cfg.ReserveDecimals),
		Fees:           formatTokenAmount(acc.Fees, a.cfg.ReserveDecimals),
		Deposits:       formatTokenAmount(acc.Deposits, a.cfg.ReserveDecimals),
		Withdrawals:    formatTokenAmount(acc.Withdrawals, a.cfg.ReserveDecimals),
		ClosingReserve: closing,
		FeeYield:       feeYield,
		APR:            computeAPR(feeYield, a.cfg.WindowSeconds),
	}
}

// resolveCreditDecimals replaces the configured credit decimals with the
// credit token's on-chain value. A failed lookup keeps the configured value.
func (a *Aggregator) resolveCreditDecimals(ctx context.Context) {
	if a.cfg.CreditToken == "" || a.tokenMeta == nil {
		return
	}
	if !common.IsHexAddress(a.cfg.CreditToken) {
		a.logger.Warn("credit token is not an address", zap.String("token", a.cfg.CreditToken))
		return
	}
	meta, err := a.tokenMeta(ctx, common.HexToAddress(a.cfg.CreditToken))
	if err != nil {
		a.logger.Warn("credit token metadata", zap.String("token", a.cfg.CreditToken), zap.Error(err))
		return
	}
	a.logger.Info("credit token",
		zap.String("token", meta.Address),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
	)
	a.cfg.CreditDecimals = meta.Decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
