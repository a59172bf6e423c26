package storage

import "carbonPool/internal/model"

// Storage defines a sink for encoded pool event records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
