package storage

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"carbonPool/internal/model"
)

// Archiver batches event records off the commit path and writes them to
// every sink. Enqueue never blocks; when the buffer is full the record is
// dropped and reported to OnDrop.
type Archiver struct {
	// OnDrop, when set, is called for every record the full queue rejects.
	OnDrop func(model.LogRecord)

	sinks    []Storage
	queue    chan model.LogRecord
	maxBatch int
	interval time.Duration
	logger   *zap.Logger
	dropped  atomic.Uint64
}

func NewArchiver(buffer, maxBatch int, interval time.Duration, logger *zap.Logger, sinks ...Storage) *Archiver {
	if buffer <= 0 {
		buffer = 1024
	}
	if maxBatch <= 0 {
		maxBatch = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		sinks:    sinks,
		queue:    make(chan model.LogRecord, buffer),
		maxBatch: maxBatch,
		interval: interval,
		logger:   logger,
	}
}

// Enqueue reports whether the record was accepted.
func (a *Archiver) Enqueue(record model.LogRecord) bool {
	select {
	case a.queue <- record:
		return true
	default:
		n := a.dropped.Add(1)
		a.logger.Warn("archive queue full, dropping event", zap.Uint64("seq", record.Seq), zap.Uint64("dropped", n))
		if a.OnDrop != nil {
			a.OnDrop(record)
		}
		return false
	}
}

// Dropped returns how many records the full queue has rejected.
func (a *Archiver) Dropped() uint64 {
	return a.dropped.Load()
}

// Run drains the queue until ctx is done, then flushes what is left.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	batch := make([]model.LogRecord, 0, a.maxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, sink := range a.sinks {
			if err := sink.PutLogBatch(batch); err != nil {
				a.logger.Error("archive batch", zap.Int("records", len(batch)), zap.Uint64("first_seq", batch[0].Seq), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case record := <-a.queue:
					batch = append(batch, record)
					if len(batch) >= a.maxBatch {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		case record := <-a.queue:
			batch = append(batch, record)
			if len(batch) >= a.maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
