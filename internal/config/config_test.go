package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func serveFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("listen", ":8080", "")
	flags.String("pool-address", "", "")
	flags.StringSlice("genesis-reserve", nil, "")
	flags.String("env-file", "", "")
	return flags
}

func TestLoadServeDefaults(t *testing.T) {
	cfg, err := LoadServe("", serveFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.JournalPath != "./data/journal" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FeeNumerator != "50" || cfg.FeeDenominator != "10000" {
		t.Fatalf("fee defaults mismatch: %s/%s", cfg.FeeNumerator, cfg.FeeDenominator)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout mismatch: %s", cfg.ShutdownTimeout)
	}
	if cfg.OperationWait != 5*time.Second {
		t.Fatalf("operation wait mismatch: %s", cfg.OperationWait)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("admin token should default to empty, got %q", cfg.AdminToken)
	}
}

func TestLoadServeFlagsAndEnv(t *testing.T) {
	t.Setenv("CARBONPOOL_PG_DSN", "postgres://local")
	t.Setenv("CARBONPOOL_ADMIN_TOKEN", "s3cret")
	t.Setenv("CARBONPOOL_GENESIS_CREDITS", "0x00000000000000000000000000000000000000b1=5, 0x00000000000000000000000000000000000000b2=7")

	flags := serveFlags()
	if err := flags.Parse([]string{"--listen", ":9999", "--genesis-reserve", "0x00000000000000000000000000000000000000b1=100"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadServe("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Fatalf("listen mismatch: %s", cfg.Listen)
	}
	if cfg.PGDSN != "postgres://local" {
		t.Fatalf("pg dsn mismatch: %s", cfg.PGDSN)
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("admin token mismatch: %q", cfg.AdminToken)
	}
	if len(cfg.GenesisReserve) != 1 || len(cfg.GenesisCredits) != 2 {
		t.Fatalf("genesis mismatch: %+v %+v", cfg.GenesisReserve, cfg.GenesisCredits)
	}
}

func TestLoadServeEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.env")
	if err := os.WriteFile(path, []byte("CARBONPOOL_OWNER=0x0000000000000000000000000000000000000001\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CARBONPOOL_OWNER") })

	flags := serveFlags()
	if err := flags.Parse([]string{"--env-file", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := LoadServe("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner != "0x0000000000000000000000000000000000000001" {
		t.Fatalf("owner mismatch: %s", cfg.Owner)
	}
}

func TestLoadServeConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carbonpool.yaml")
	body := "exchange-rate: \"3\"\nfee-numerator: \"25\"\ncors-origins:\n  - http://localhost:3000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServe(path, serveFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExchangeRate != "3" || cfg.FeeNumerator != "25" {
		t.Fatalf("config file values mismatch: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins mismatch: %+v", cfg.CORSOrigins)
	}
}

func TestParseAllocations(t *testing.T) {
	allocs, err := ParseAllocations([]string{"0x00000000000000000000000000000000000000b1=1000"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(allocs) != 1 || allocs[0].Amount.Uint64() != 1000 {
		t.Fatalf("allocation mismatch: %+v", allocs)
	}

	bad := []string{
		"0x00000000000000000000000000000000000000b1",
		"nothex=5",
		"0x0000000000000000000000000000000000000000=5",
		"0x00000000000000000000000000000000000000b1=-5",
	}
	for _, entry := range bad {
		if _, err := ParseAllocations([]string{entry}); err == nil {
			t.Fatalf("expected error for %q", entry)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts, err := ParseTimestamp("1700000000"); err != nil || ts != 1700000000 {
		t.Fatalf("unix parse: %d %v", ts, err)
	}
	if ts, err := ParseTimestamp("2023-11-14T22:13:20Z"); err != nil || ts != 1700000000 {
		t.Fatalf("rfc3339 parse: %d %v", ts, err)
	}
	if ts, err := ParseTimestamp(""); err != nil || ts != 0 {
		t.Fatalf("empty parse: %d %v", ts, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
