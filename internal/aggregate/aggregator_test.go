package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbonPool/internal/eventlog"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
	"carbonPool/internal/storage"
)

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTrader = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type memorySink struct {
	metrics []model.PoolWindowMetrics
}

func (m *memorySink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	m.metrics = append(m.metrics, metrics...)
	return nil
}

type memoryState struct {
	ts uint64
	ok bool
}

func (m *memoryState) Load(context.Context) (uint64, bool, error) { return m.ts, m.ok, nil }

func (m *memoryState) Save(_ context.Context, ts uint64) error {
	m.ts, m.ok = ts, true
	return nil
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func event(seq uint64, kind pool.EventKind, ts int64, credits, reserve, shares, fee uint64) pool.Event {
	return pool.Event{
		Seq:       seq,
		Kind:      kind,
		Actor:     testTrader,
		Credits:   u(credits),
		Reserve:   u(reserve),
		Shares:    u(shares),
		Fee:       u(fee),
		Timestamp: time.Unix(ts, 0).UTC(),
	}
}

func writeEvents(t *testing.T, events ...pool.Event) string {
	t.Helper()
	encoder, err := eventlog.NewEncoder(56, testPool)
	require.NoError(t, err)

	records := make([]model.LogRecord, 0, len(events))
	for _, ev := range events {
		record, err := encoder.Encode(ev)
		require.NoError(t, err)
		records = append(records, record)
	}
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, storage.NewJsonlStorage(path).PutLogBatch(records))
	return path
}

func TestAccumulatorTradesAndFlows(t *testing.T) {
	acc := NewAccumulator(56, testPool.Hex(), 0, 60)
	require.NoError(t, acc.AddEvent(event(1, pool.EventDeposit, 1, 0, 1000, 1000, 0)))
	require.NoError(t, acc.AddEvent(event(2, pool.EventSell, 2, 50, 49, 0, 1)))
	require.NoError(t, acc.AddEvent(event(3, pool.EventBuy, 3, 10, 11, 0, 1)))
	require.NoError(t, acc.AddEvent(event(4, pool.EventWithdraw, 4, 0, 100, 100, 0)))
	require.NoError(t, acc.AddEvent(event(5, pool.EventSweep, 5, 3, 0, 0, 0)))

	require.Equal(t, uint64(2), acc.TradeCount)
	require.Equal(t, uint64(1), acc.SellCount)
	require.Equal(t, uint64(1), acc.BuyCount)
	require.Equal(t, "60", acc.CreditVolume.String())
	require.Equal(t, "60", acc.ReserveVolume.String())
	require.Equal(t, "2", acc.Fees.String())
	require.Equal(t, "1000", acc.Deposits.String())
	require.Equal(t, "100", acc.Withdrawals.String())
	require.Equal(t, uint64(1), acc.FirstSeq)
	require.Equal(t, uint64(5), acc.LastSeq)
	require.Equal(t, uint64(5), acc.LastTS)
}

func TestReserveDelta(t *testing.T) {
	require.Equal(t, "100", reserveDelta(event(1, pool.EventDeposit, 0, 0, 100, 100, 0)).String())
	require.Equal(t, "-49", reserveDelta(event(2, pool.EventSell, 0, 50, 49, 0, 1)).String())
	require.Equal(t, "10", reserveDelta(event(3, pool.EventBuy, 0, 10, 11, 0, 1)).String())
	require.Equal(t, "-30", reserveDelta(event(4, pool.EventWithdraw, 0, 0, 30, 30, 0)).String())
	require.Equal(t, "0", reserveDelta(event(5, pool.EventSweep, 0, 5, 0, 0, 0)).String())
}

func TestAggregatorWindows(t *testing.T) {
	path := writeEvents(t,
		event(1, pool.EventDeposit, 10, 0, 1000, 1000, 0),
		event(2, pool.EventSell, 20, 100, 99, 0, 1),
		event(3, pool.EventBuy, 70, 10, 11, 0, 1),
	)

	sink := &memorySink{}
	state := &memoryState{}
	agg, err := newAggregator(Config{WindowSeconds: 60, BatchSize: 10, StateStore: state}, sink, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, agg.Run(context.Background(), path))

	require.Len(t, sink.metrics, 2)
	first, second := sink.metrics[0], sink.metrics[1]

	require.Equal(t, uint64(1), first.TradeCount)
	require.Equal(t, "1000", first.Deposits)
	require.Equal(t, "1", first.Fees)
	require.NotNil(t, first.ClosingReserve)
	require.Equal(t, "901", *first.ClosingReserve)
	require.NotNil(t, first.FeeYield)
	require.NotNil(t, first.APR)

	require.Equal(t, uint64(1), second.BuyCount)
	require.Equal(t, "911", *second.ClosingReserve)
	require.Equal(t, time.Unix(60, 0).UTC(), second.WindowStart)

	require.True(t, state.ok)
	require.Equal(t, uint64(70), state.ts)
}

func TestAggregatorResumeKeepsRunningReserve(t *testing.T) {
	path := writeEvents(t,
		event(1, pool.EventDeposit, 10, 0, 1000, 1000, 0),
		event(2, pool.EventBuy, 70, 10, 11, 0, 1),
	)

	sink := &memorySink{}
	state := &memoryState{ts: 59, ok: true}
	agg, err := newAggregator(Config{WindowSeconds: 60, StateStore: state}, sink, nil, nil)
	require.NoError(t, err)
	require.NoError(t, agg.Run(context.Background(), path))

	require.Len(t, sink.metrics, 1)
	require.Equal(t, "1010", *sink.metrics[0].ClosingReserve)
	require.Equal(t, "0", sink.metrics[0].Deposits)
}

func TestAggregatorFormatsDecimals(t *testing.T) {
	path := writeEvents(t, event(1, pool.EventDeposit, 10, 0, 1500000, 1500000, 0))

	sink := &memorySink{}
	agg, err := newAggregator(Config{WindowSeconds: 60, ReserveDecimals: 6}, sink, nil, nil)
	require.NoError(t, err)
	require.NoError(t, agg.Run(context.Background(), path))

	require.Len(t, sink.metrics, 1)
	require.Equal(t, "1.500000", sink.metrics[0].Deposits)
	require.Nil(t, sink.metrics[0].FeeYield)
}

func TestAggregatorUsesCreditTokenDecimals(t *testing.T) {
	path := writeEvents(t,
		event(1, pool.EventDeposit, 10, 0, 5000, 5000, 0),
		event(2, pool.EventSell, 20, 2500, 100, 0, 0),
	)
	token := "0x3333333333333333333333333333333333333333"

	sink := &memorySink{}
	agg, err := newAggregator(Config{WindowSeconds: 60, CreditToken: token, CreditDecimals: 1}, sink, nil, nil)
	require.NoError(t, err)
	var asked common.Address
	agg.tokenMeta = func(_ context.Context, addr common.Address) (model.TokenMeta, error) {
		asked = addr
		return model.TokenMeta{Address: addr.Hex(), Symbol: "tCO2", Decimals: 3}, nil
	}
	require.NoError(t, agg.Run(context.Background(), path))
	require.Equal(t, common.HexToAddress(token), asked)
	require.Len(t, sink.metrics, 1)
	require.Equal(t, "2.500", sink.metrics[0].CreditVolume)

	sink = &memorySink{}
	agg, err = newAggregator(Config{WindowSeconds: 60, CreditToken: token, CreditDecimals: 1}, sink, nil, nil)
	require.NoError(t, err)
	agg.tokenMeta = func(context.Context, common.Address) (model.TokenMeta, error) {
		return model.TokenMeta{}, errors.New("rpc down")
	}
	require.NoError(t, agg.Run(context.Background(), path))
	require.Len(t, sink.metrics, 1)
	require.Equal(t, "250.0", sink.metrics[0].CreditVolume)
}

func TestAggregatorRejectsSequenceGap(t *testing.T) {
	path := writeEvents(t,
		event(1, pool.EventDeposit, 10, 0, 1000, 1000, 0),
		event(3, pool.EventSell, 20, 100, 99, 0, 1),
	)
	sink := &memorySink{}
	state := &memoryState{}
	agg, err := newAggregator(Config{WindowSeconds: 60, StateStore: state}, sink, nil, nil)
	require.NoError(t, err)

	err = agg.Run(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "seq 3 where 2 was expected")
	require.Empty(t, sink.metrics)
	require.False(t, state.ok)
}

func TestComputeAPR(t *testing.T) {
	yield := "0.001000000000000000"
	apr := computeAPR(&yield, 24*3600)
	require.NotNil(t, apr)
	require.Equal(t, "0.365000000000000000", *apr)
	require.Nil(t, computeAPR(nil, 60))
}
