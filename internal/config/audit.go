package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay audit.
type ReplayConfig struct {
	JournalPath       string
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxViolations     int
	Out               string
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"journal":            "./data/journal",
		"batch-size":         uint64(1000),
		"checkpoint":         "./data/replay_checkpoint.json",
		"checkpoint-enabled": false,
		"log-level":          "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		JournalPath:       v.GetString("journal"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxViolations:     v.GetInt("max-violations"),
		Out:               v.GetString("out"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// ReconcileConfig holds configuration for on-chain reconciliation.
type ReconcileConfig struct {
	RPCURL       string
	JournalPath  string
	Token        string
	Holder       string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadReconcile merges config file, environment variables, and flags into ReconcileConfig.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"journal":       "./data/journal",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ReconcileConfig{}, err
	}

	return ReconcileConfig{
		RPCURL:       v.GetString("rpc"),
		JournalPath:  v.GetString("journal"),
		Token:        v.GetString("token"),
		Holder:       v.GetString("holder"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
