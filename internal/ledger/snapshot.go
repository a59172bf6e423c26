package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshotter is a ledger whose full state can be exported and re-imported.
type Snapshotter interface {
	Name() string
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

type tokenSnapshot struct {
	Name       string                       `json:"name"`
	Minter     string                       `json:"minter,omitempty"`
	Supply     string                       `json:"supply"`
	Balances   map[string]string            `json:"balances"`
	Allowances map[string]map[string]string `json:"allowances,omitempty"`
}

type bankSnapshot struct {
	Issued   string            `json:"issued"`
	Balances map[string]string `json:"balances"`
}

func (t *Token) Snapshot() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := tokenSnapshot{
		Name:     t.name,
		Supply:   t.supply.Dec(),
		Balances: encodeBalances(t.balances),
	}
	if t.minter != (common.Address{}) {
		snap.Minter = t.minter.Hex()
	}
	if len(t.allowances) > 0 {
		snap.Allowances = make(map[string]map[string]string, len(t.allowances))
		for owner, bySpender := range t.allowances {
			if len(bySpender) == 0 {
				continue
			}
			snap.Allowances[owner.Hex()] = encodeBalances(bySpender)
		}
	}
	return json.Marshal(snap)
}

// Restore replaces the token state with a snapshot of a token of the same name.
func (t *Token) Restore(data []byte) error {
	var snap tokenSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", t.name, err)
	}
	if snap.Name != t.name {
		return fmt.Errorf("snapshot is for token %q, not %q", snap.Name, t.name)
	}
	supply, err := uint256.FromDecimal(snap.Supply)
	if err != nil {
		return fmt.Errorf("%s supply: %w", t.name, err)
	}
	balances, err := decodeBalances(snap.Balances)
	if err != nil {
		return fmt.Errorf("%s balances: %w", t.name, err)
	}
	allowances := make(map[common.Address]map[common.Address]*uint256.Int, len(snap.Allowances))
	for owner, bySpender := range snap.Allowances {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("%s allowance owner %q is not an address", t.name, owner)
		}
		decoded, err := decodeBalances(bySpender)
		if err != nil {
			return fmt.Errorf("%s allowances: %w", t.name, err)
		}
		allowances[common.HexToAddress(owner)] = decoded
	}
	var minter common.Address
	if snap.Minter != "" {
		minter = common.HexToAddress(snap.Minter)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.minter = minter
	t.supply = supply
	t.balances = balances
	t.allowances = allowances
	return nil
}

func (b *Bank) Name() string { return "bank" }

func (b *Bank) Snapshot() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return json.Marshal(bankSnapshot{Issued: b.issued.Dec(), Balances: encodeBalances(b.balances)})
}

func (b *Bank) Restore(data []byte) error {
	var snap bankSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode bank snapshot: %w", err)
	}
	issued, err := uint256.FromDecimal(snap.Issued)
	if err != nil {
		return fmt.Errorf("bank issued: %w", err)
	}
	balances, err := decodeBalances(snap.Balances)
	if err != nil {
		return fmt.Errorf("bank balances: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued = issued
	b.balances = balances
	return nil
}

func encodeBalances(m map[common.Address]*uint256.Int) map[string]string {
	out := make(map[string]string, len(m))
	for addr, v := range m {
		out[addr.Hex()] = v.Dec()
	}
	return out
}

func decodeBalances(m map[string]string) (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(m))
	for addr, s := range m {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%q is not an address", addr)
		}
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		if !v.IsZero() {
			out[common.HexToAddress(addr)] = v
		}
	}
	return out, nil
}
