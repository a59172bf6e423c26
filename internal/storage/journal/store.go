package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"carbonPool/internal/eventlog"
	"carbonPool/internal/ledger"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

// Store is the durable pool journal. Each commit writes the pool state, the
// encoded event and every tracked ledger snapshot in one synced batch.
type Store struct {
	db      *pebble.DB
	encoder *eventlog.Encoder
	logger  *zap.Logger

	mu      sync.Mutex
	ledgers []ledger.Snapshotter
}

func Open(path string, encoder *eventlog.Encoder, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if encoder == nil {
		return nil, fmt.Errorf("event encoder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db, encoder: encoder, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Track adds ledgers whose snapshots are written with every commit.
func (s *Store) Track(ledgers ...ledger.Snapshotter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers = append(s.ledgers, ledgers...)
}

// Record implements pool.Journal.
func (s *Store) Record(_ context.Context, st pool.State, ev *pool.Event) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	stateJSON, err := json.Marshal(st.Record())
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := batch.Set([]byte(keyState), stateJSON, nil); err != nil {
		return err
	}
	if ev != nil {
		rec, err := s.encoder.Encode(*ev)
		if err != nil {
			return err
		}
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal log record: %w", err)
		}
		if err := batch.Set(eventKey(ev.Seq), recJSON, nil); err != nil {
			return err
		}
	}
	if err := s.stageLedgers(batch); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit journal batch: %w", err)
	}
	return nil
}

// Checkpoint persists ledger snapshots alone, for ledger changes made outside
// pool operations such as approvals and funding.
func (s *Store) Checkpoint(context.Context) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := s.stageLedgers(batch); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit ledger checkpoint: %w", err)
	}
	return nil
}

func (s *Store) stageLedgers(batch *pebble.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.ledgers {
		snap, err := l.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", l.Name(), err)
		}
		if err := batch.Set(ledgerKey(l.Name()), snap, nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last committed pool state.
func (s *Store) LoadState() (pool.State, bool, error) {
	var rec model.PoolState
	ok, err := s.getJSON([]byte(keyState), &rec)
	if err != nil || !ok {
		return pool.State{}, ok, err
	}
	st, err := pool.StateFromRecord(rec)
	if err != nil {
		return pool.State{}, false, fmt.Errorf("decode pool state: %w", err)
	}
	return st, true, nil
}

// RestoreLedgers loads stored snapshots into the tracked ledgers. Ledgers
// without a stored snapshot are left as they are.
func (s *Store) RestoreLedgers() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, l := range s.ledgers {
		val, closer, err := s.db.Get(ledgerKey(l.Name()))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("get %s snapshot: %w", l.Name(), err)
		}
		err = l.Restore(val)
		closer.Close()
		if err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// SavePoolInfo records the deployment parameters the journal was written with.
func (s *Store) SavePoolInfo(info model.PoolInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal pool info: %w", err)
	}
	return s.db.Set([]byte(keyPoolInfo), data, pebble.Sync)
}

func (s *Store) LoadPoolInfo() (model.PoolInfo, bool, error) {
	var info model.PoolInfo
	ok, err := s.getJSON([]byte(keyPoolInfo), &info)
	return info, ok, err
}

// Events calls fn for each event record with from <= seq <= to, in order.
func (s *Store) Events(from, to uint64, fn func(model.LogRecord) error) error {
	if to < from {
		return nil
	}
	upper := keyUpperBound([]byte(prefixEvent))
	if to < ^uint64(0) {
		upper = eventKey(to + 1)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: eventKey(from),
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var rec model.LogRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			seq, _ := eventSeqFromKey(iter.Key())
			return fmt.Errorf("decode event %d: %w", seq, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq returns the highest journaled event sequence.
func (s *Store) LastSeq() (uint64, bool, error) {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, false, iter.Error()
	}
	seq, err := eventSeqFromKey(iter.Key())
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

func (s *Store) getJSON(key []byte, out interface{}) (bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

var _ pool.Journal = (*Store)(nil)
