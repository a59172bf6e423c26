package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carbonPool/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for reports and the event archive.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store writes to.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPool inserts or updates pool deployment parameters.
func (s *Store) UpsertPool(ctx context.Context, info model.PoolInfo) error {
	var creditToken *string
	if info.CreditToken != nil {
		creditToken = &info.CreditToken.Address
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			chain_id, pool_address, owner, exchange_rate, fee_numerator, fee_denominator, credit_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET
			owner = EXCLUDED.owner,
			exchange_rate = EXCLUDED.exchange_rate,
			fee_numerator = EXCLUDED.fee_numerator,
			fee_denominator = EXCLUDED.fee_denominator,
			credit_token = COALESCE(EXCLUDED.credit_token, pools.credit_token),
			updated_at = now()
	`,
		int64(info.ChainID),
		info.Address,
		info.Owner,
		info.ExchangeRate,
		info.FeeNumerator,
		info.FeeDenominator,
		creditToken,
	)
	return err
}

// ArchiveEvents inserts event log records, ignoring ones already stored.
func (s *Store) ArchiveEvents(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		if len(l.Topics) == 0 {
			return fmt.Errorf("event %d has no topics", l.Seq)
		}
		batch.Queue(`
			INSERT INTO pool_events (chain_id, pool_address, seq, topic0, topics, data, event_ts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (chain_id, pool_address, seq) DO NOTHING
		`,
			int64(l.ChainID),
			l.Address,
			int64(l.Seq),
			l.Topics[0],
			l.Topics,
			l.Data,
			int64(l.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				trade_count, buy_count, sell_count, credit_volume, reserve_volume, fees,
				deposits, withdrawals, closing_reserve, fee_yield, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				trade_count = EXCLUDED.trade_count,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				credit_volume = EXCLUDED.credit_volume,
				reserve_volume = EXCLUDED.reserve_volume,
				fees = EXCLUDED.fees,
				deposits = EXCLUDED.deposits,
				withdrawals = EXCLUDED.withdrawals,
				closing_reserve = EXCLUDED.closing_reserve,
				fee_yield = EXCLUDED.fee_yield,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.TradeCount),
			int64(m.BuyCount),
			int64(m.SellCount),
			m.CreditVolume,
			m.ReserveVolume,
			m.Fees,
			m.Deposits,
			m.Withdrawals,
			m.ClosingReserve,
			m.FeeYield,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM report_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

// EventArchive adapts the store to storage.Storage for the event archiver.
type EventArchive struct {
	Store   *Store
	Timeout time.Duration
}

func (a EventArchive) PutLogBatch(logs []model.LogRecord) error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Store.ArchiveEvents(ctx, logs)
}
