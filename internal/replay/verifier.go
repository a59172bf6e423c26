package replay

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"carbonPool/internal/eventlog"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

// Source is the journal view replay reads from.
type Source interface {
	Events(from, to uint64, fn func(model.LogRecord) error) error
	LastSeq() (uint64, bool, error)
	LoadState() (pool.State, bool, error)
}

// Pricing enables per-trade fee and price checks.
type Pricing struct {
	ExchangeRate *uint256.Int
	Fee          pool.FeeSchedule
}

// PricingFromInfo parses the stored deployment parameters.
func PricingFromInfo(info model.PoolInfo) (*Pricing, error) {
	rate, err := uint256.FromDecimal(info.ExchangeRate)
	if err != nil {
		return nil, fmt.Errorf("exchange rate: %w", err)
	}
	num, err := uint256.FromDecimal(info.FeeNumerator)
	if err != nil {
		return nil, fmt.Errorf("fee numerator: %w", err)
	}
	den, err := uint256.FromDecimal(info.FeeDenominator)
	if err != nil {
		return nil, fmt.Errorf("fee denominator: %w", err)
	}
	if den.IsZero() {
		return nil, fmt.Errorf("fee denominator must be positive")
	}
	return &Pricing{ExchangeRate: rate, Fee: pool.FeeSchedule{Numerator: num, Denominator: den}}, nil
}

// Config holds runtime settings for a replay audit.
type Config struct {
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	Pricing           *Pricing
	// MaxViolations stops the audit early; zero means unlimited.
	MaxViolations int
}

// Violation is one broken invariant found while folding events.
type Violation struct {
	Seq    uint64 `json:"seq"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Report summarizes a replay audit.
type Report struct {
	FromSeq    uint64           `json:"from_seq"`
	LastSeq    uint64           `json:"last_seq"`
	Events     uint64           `json:"events"`
	Folded     model.PoolState  `json:"folded"`
	Stored     *model.PoolState `json:"stored,omitempty"`
	Matches    bool             `json:"matches"`
	Violations []Violation      `json:"violations,omitempty"`
}

// OK reports whether the journal passed every check.
func (r Report) OK() bool {
	return r.Matches && len(r.Violations) == 0
}

// Verifier folds journaled events from genesis and checks the pool's
// accounting invariants along the way.
type Verifier struct {
	cfg        Config
	source     Source
	decoder    *eventlog.Decoder
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

func NewVerifier(cfg Config, source Source, logger *zap.Logger) (*Verifier, error) {
	if source == nil {
		return nil, fmt.Errorf("event source is nil")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := eventlog.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Verifier{
		cfg:        cfg,
		source:     source,
		decoder:    decoder,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}, nil
}

// Run folds every event after the checkpoint and compares the result with the
// stored pool state.
func (v *Verifier) Run(ctx context.Context) (Report, error) {
	f := newFold(v.cfg.Pricing)
	from := uint64(1)

	cp, ok, err := v.checkpoint.Load()
	if err != nil {
		return Report{}, err
	}
	if ok {
		if err := f.resume(cp); err != nil {
			return Report{}, fmt.Errorf("resume checkpoint: %w", err)
		}
		from = cp.LastVerifiedSeq + 1
		v.logger.Info("resume from checkpoint", zap.Uint64("last_verified", cp.LastVerifiedSeq), zap.Uint64("from", from))
	}

	report := Report{FromSeq: from}

	last, ok, err := v.source.LastSeq()
	if err != nil {
		return Report{}, fmt.Errorf("last sequence: %w", err)
	}
	if ok && last >= from {
		ranges, err := SplitRange(from, last, v.cfg.BatchSize)
		if err != nil {
			return Report{}, err
		}
		for _, seqRange := range ranges {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			err := v.source.Events(seqRange.From, seqRange.To, func(record model.LogRecord) error {
				ev, err := v.decoder.PoolEvent(record)
				if err != nil {
					return fmt.Errorf("decode event %d: %w", record.Seq, err)
				}
				f.apply(ev)
				report.Events++
				return nil
			})
			if err != nil {
				return Report{}, err
			}
			if len(f.violations) == 0 {
				if err := v.checkpoint.Save(f.seq, f.state().Record()); err != nil {
					return Report{}, err
				}
			}
			v.logger.Info("batch verified",
				zap.Uint64("from", seqRange.From),
				zap.Uint64("to", seqRange.To),
				zap.Int("violations", len(f.violations)),
			)
			if v.cfg.MaxViolations > 0 && len(f.violations) >= v.cfg.MaxViolations {
				break
			}
		}
	}

	folded := f.state()
	report.LastSeq = f.seq
	report.Folded = folded.Record()
	report.Violations = f.violations

	stored, ok, err := v.source.LoadState()
	if err != nil {
		return Report{}, fmt.Errorf("load stored state: %w", err)
	}
	if ok {
		rec := stored.Record()
		report.Stored = &rec
		report.Matches = sameAccounting(folded, stored)
	} else {
		report.Matches = report.Events == 0
	}

	v.logger.Info("replay complete",
		zap.Uint64("events", report.Events),
		zap.Uint64("last_seq", report.LastSeq),
		zap.Bool("matches", report.Matches),
		zap.Int("violations", len(report.Violations)),
	)
	return report, nil
}

func sameAccounting(a, b pool.State) bool {
	return a.Sequence == b.Sequence &&
		a.ReserveBalance.Eq(b.ReserveBalance) &&
		a.TotalShares.Eq(b.TotalShares) &&
		a.AccumulatedFees.Eq(b.AccumulatedFees)
}
