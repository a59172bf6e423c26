package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Listen          string
	JournalPath     string
	EventsOut       string
	PGDSN           string
	ChainID         uint64
	PoolAddress     string
	Owner           string
	Issuer          string
	ExchangeRate    string
	FeeNumerator    string
	FeeDenominator  string
	GenesisReserve  []string
	GenesisCredits  []string
	CORSOrigins     []string
	BindShares      bool
	// AdminToken guards the owner and approval routes. Empty disables them.
	AdminToken      string
	OperationWait   time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"listen":           ":8080",
		"journal":          "./data/journal",
		"chain-id":         uint64(31337),
		"exchange-rate":    "1",
		"fee-numerator":    "50",
		"fee-denominator":  "10000",
		"bind-shares":      true,
		"operation-wait":   5 * time.Second,
		"shutdown-timeout": 10 * time.Second,
		"log-level":        "info",
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:          v.GetString("listen"),
		JournalPath:     v.GetString("journal"),
		EventsOut:       v.GetString("events-out"),
		PGDSN:           v.GetString("pg-dsn"),
		ChainID:         v.GetUint64("chain-id"),
		PoolAddress:     v.GetString("pool-address"),
		Owner:           v.GetString("owner"),
		Issuer:          v.GetString("issuer"),
		ExchangeRate:    v.GetString("exchange-rate"),
		FeeNumerator:    v.GetString("fee-numerator"),
		FeeDenominator:  v.GetString("fee-denominator"),
		GenesisReserve:  getStringSlice(v, "genesis-reserve"),
		GenesisCredits:  getStringSlice(v, "genesis-credits"),
		CORSOrigins:     getStringSlice(v, "cors-origins"),
		BindShares:      v.GetBool("bind-shares"),
		AdminToken:      v.GetString("admin-token"),
		OperationWait:   v.GetDuration("operation-wait"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Allocation is a genesis balance.
type Allocation struct {
	Address common.Address
	Amount  *uint256.Int
}

// ParseAllocations parses "address=amount" entries.
func ParseAllocations(entries []string) ([]Allocation, error) {
	out := make([]Allocation, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("allocation %q: expected address=amount", entry)
		}
		addr, err := ParseAddress(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("allocation %q: %w", entry, err)
		}
		amount, err := ParseAmount(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("allocation %q: %w", entry, err)
		}
		out = append(out, Allocation{Address: addr, Amount: amount})
	}
	return out, nil
}

// ParseAddress parses a non-zero hex address.
func ParseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	addr := common.HexToAddress(input)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

// ParseAmount parses a base-10 unsigned 256-bit amount.
func ParseAmount(input string) (*uint256.Int, error) {
	if input == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	return amount, nil
}
