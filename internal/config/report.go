package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ReportConfig holds configuration for window reporting.
type ReportConfig struct {
	RPCURL          string
	Input           string
	Window          string
	PGDSN           string
	BatchSize       int
	StateFile       string
	RecomputeFrom   string
	ReserveDecimals uint8
	CreditDecimals  uint8
	CreditToken     string
	LogLevel        string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
		"log-level":  "info",
		"window":     "1h",
		"in":         "./data/events.jsonl",
	})
	if err != nil {
		return ReportConfig{}, err
	}

	cfg := ReportConfig{
		RPCURL:          v.GetString("rpc"),
		Input:           v.GetString("in"),
		Window:          v.GetString("window"),
		PGDSN:           v.GetString("pg-dsn"),
		BatchSize:       v.GetInt("batch-size"),
		StateFile:       v.GetString("state-file"),
		RecomputeFrom:   v.GetString("recompute-from"),
		ReserveDecimals: uint8(v.GetUint("reserve-decimals")),
		CreditDecimals:  uint8(v.GetUint("credit-decimals")),
		CreditToken:     v.GetString("credit-token"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
