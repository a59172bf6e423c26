package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultOperationWait bounds how long an operation waits for the one in progress.
const DefaultOperationWait = 5 * time.Second

// Config fixes the pool's deployment-time parameters and collaborators.
type Config struct {
	// Address is the pool's own account in the collaborator ledgers.
	Address      common.Address
	Owner        common.Address
	ExchangeRate *uint256.Int
	Fee          FeeSchedule

	Credits    CreditLedger
	Reserve    ReserveBank
	Authorizer Authorizer
	Journal    Journal
	Clock      func() time.Time

	// OperationWait caps the wait for an in-progress operation. A caller
	// still waiting after it gets ErrBusy.
	OperationWait time.Duration
}

func (c *Config) validate() error {
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: pool address is required", ErrInvalidAddress)
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("%w: owner address is required", ErrInvalidAddress)
	}
	if c.ExchangeRate == nil || c.ExchangeRate.IsZero() {
		return fmt.Errorf("%w: exchange rate must be positive", ErrInvalidAmount)
	}
	if err := c.Fee.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if c.Credits == nil {
		return fmt.Errorf("credit ledger is required")
	}
	if c.Reserve == nil {
		return fmt.Errorf("reserve bank is required")
	}
	if c.Authorizer == nil {
		c.Authorizer = OwnerOnly{Owner: c.Owner}
	}
	if c.Journal == nil {
		c.Journal = nopJournal{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.OperationWait <= 0 {
		c.OperationWait = DefaultOperationWait
	}
	return nil
}

// Pool is the liquidity pool accounting engine. Operations are serialized;
// State may be read at any time without blocking.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	slot       *semaphore.Weighted
	inProgress atomic.Bool
	shares     ShareLedger
	current    atomic.Pointer[State]

	lmu       sync.RWMutex
	listeners []Listener
}

func New(cfg Config, logger *zap.Logger) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{cfg: cfg, logger: logger, slot: semaphore.NewWeighted(1)}
	p.current.Store(genesisState())
	return p, nil
}

// Restore loads a persisted snapshot into a pool that has not committed
// anything yet. shares is required when the snapshot has a bound share ledger.
func (p *Pool) Restore(st State, shares ShareLedger) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if !p.slot.TryAcquire(1) {
		return fmt.Errorf("%w: cannot restore during an operation", ErrBusy)
	}
	defer p.slot.Release(1)
	if cur := p.current.Load(); cur.Sequence != 0 || cur.SharesBound {
		return fmt.Errorf("%w: pool already has committed state", ErrAlreadyConfigured)
	}
	if st.SharesBound && shares == nil {
		return fmt.Errorf("%w: snapshot expects a bound share ledger", ErrPrerequisiteMissing)
	}
	if st.SharesBound {
		p.shares = shares
	}
	p.current.Store(st.clone())
	p.logger.Info("pool restored",
		zap.Uint64("seq", st.Sequence),
		zap.String("reserve", st.ReserveBalance.Dec()),
		zap.String("shares", st.TotalShares.Dec()),
		zap.String("fees", st.AccumulatedFees.Dec()),
	)
	return nil
}

// State returns a copy of the last committed snapshot.
func (p *Pool) State() State {
	return p.current.Load().Copy()
}

func (p *Pool) Address() common.Address { return p.cfg.Address }
func (p *Pool) Owner() common.Address   { return p.cfg.Owner }

func (p *Pool) ExchangeRate() *uint256.Int { return p.cfg.ExchangeRate.Clone() }

func (p *Pool) FeeSchedule() FeeSchedule {
	return FeeSchedule{Numerator: p.cfg.Fee.Numerator.Clone(), Denominator: p.cfg.Fee.Denominator.Clone()}
}

// Subscribe registers l for every committed event.
func (p *Pool) Subscribe(l Listener) {
	if l == nil {
		return
	}
	p.lmu.Lock()
	p.listeners = append(p.listeners, l)
	p.lmu.Unlock()
}

type guardKey struct{}

// enter claims the pool for one operation and marks ctx so collaborators
// calling back with it are rejected at once. A call that finds another
// operation in progress waits at most OperationWait, so a callback on a fresh
// context fails with ErrBusy instead of blocking forever.
func (p *Pool) enter(ctx context.Context) (context.Context, func(), error) {
	if owner, _ := ctx.Value(guardKey{}).(*Pool); owner == p {
		return nil, nil, ErrReentrant
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p.inProgress.Load() || !p.slot.TryAcquire(1) {
		if err := p.await(ctx); err != nil {
			return nil, nil, err
		}
	}
	p.inProgress.Store(true)
	return context.WithValue(ctx, guardKey{}, p), func() {
		p.inProgress.Store(false)
		p.slot.Release(1)
	}, nil
}

func (p *Pool) await(ctx context.Context) error {
	wait := p.cfg.OperationWait
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := p.slot.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("pool operation still in progress", zap.Duration("waited", wait))
		return fmt.Errorf("%w: another operation held the pool for %s", ErrBusy, wait)
	}
	return nil
}

func (p *Pool) newEvent(kind EventKind, next *State, actor common.Address) Event {
	next.Sequence++
	return Event{
		Seq:       next.Sequence,
		Kind:      kind,
		Actor:     actor,
		Timestamp: p.cfg.Clock().UTC(),
	}
}

// commit journals next and publishes it. On journal failure the staged
// collaborator calls are compensated and the snapshot is left untouched.
func (p *Pool) commit(ctx context.Context, tx *txn, next *State, ev *Event) error {
	if err := p.cfg.Journal.Record(ctx, next.Copy(), ev); err != nil {
		return p.fail(ctx, tx, fmt.Errorf("journal: %w", err))
	}
	p.current.Store(next)
	if ev == nil {
		return nil
	}
	p.logger.Info("pool event",
		zap.Uint64("seq", ev.Seq),
		zap.String("kind", string(ev.Kind)),
		zap.String("actor", ev.Actor.Hex()),
		zap.String("reserve", next.ReserveBalance.Dec()),
		zap.String("shares", next.TotalShares.Dec()),
	)
	p.lmu.RLock()
	listeners := p.listeners
	p.lmu.RUnlock()
	for _, l := range listeners {
		l(*ev)
	}
	return nil
}

func (p *Pool) fail(ctx context.Context, tx *txn, cause error) error {
	err := tx.abort(ctx, cause)
	if err != cause {
		p.logger.Error("rollback incomplete", zap.Error(err))
	} else {
		p.logger.Debug("operation rolled back", zap.Error(cause))
	}
	return err
}

func validAddress(a common.Address) error {
	if a == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return nil
}

func positive(amount *uint256.Int, what string) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, what)
	}
	return nil
}
