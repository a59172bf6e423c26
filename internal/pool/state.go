package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"carbonPool/internal/model"
)

// Status is the pool lifecycle state.
type Status string

const (
	StatusEmpty  Status = "empty"
	StatusActive Status = "active"
)

// State is an immutable snapshot of the pool's accounting. The pool never
// mutates a published State; every commit swaps in a new one.
type State struct {
	ReserveBalance  *uint256.Int
	TotalShares     *uint256.Int
	AccumulatedFees *uint256.Int
	Sequence        uint64
	SharesBound     bool
}

func genesisState() *State {
	return &State{
		ReserveBalance:  new(uint256.Int),
		TotalShares:     new(uint256.Int),
		AccumulatedFees: new(uint256.Int),
	}
}

// Status derives the lifecycle state from the share supply.
func (s State) Status() Status {
	if s.TotalShares == nil || s.TotalShares.IsZero() {
		return StatusEmpty
	}
	return StatusActive
}

func (s State) clone() *State {
	return &State{
		ReserveBalance:  s.ReserveBalance.Clone(),
		TotalShares:     s.TotalShares.Clone(),
		AccumulatedFees: s.AccumulatedFees.Clone(),
		Sequence:        s.Sequence,
		SharesBound:     s.SharesBound,
	}
}

// Copy returns a deep copy safe for the caller to modify.
func (s State) Copy() State {
	return *s.clone()
}

// Record converts the state to its string-encoded persistence form.
func (s State) Record() model.PoolState {
	return model.PoolState{
		ReserveBalance:  s.ReserveBalance.Dec(),
		TotalShares:     s.TotalShares.Dec(),
		AccumulatedFees: s.AccumulatedFees.Dec(),
		Sequence:        s.Sequence,
		SharesBound:     s.SharesBound,
		Status:          string(s.Status()),
	}
}

// StateFromRecord parses a persisted state.
func StateFromRecord(r model.PoolState) (State, error) {
	reserve, err := parseAmount(r.ReserveBalance)
	if err != nil {
		return State{}, fmt.Errorf("reserve balance: %w", err)
	}
	shares, err := parseAmount(r.TotalShares)
	if err != nil {
		return State{}, fmt.Errorf("total shares: %w", err)
	}
	fees, err := parseAmount(r.AccumulatedFees)
	if err != nil {
		return State{}, fmt.Errorf("accumulated fees: %w", err)
	}
	return State{
		ReserveBalance:  reserve,
		TotalShares:     shares,
		AccumulatedFees: fees,
		Sequence:        r.Sequence,
		SharesBound:     r.SharesBound,
	}, nil
}

// Validate checks the at-rest invariants of a snapshot.
func (s State) Validate() error {
	if s.ReserveBalance == nil || s.TotalShares == nil || s.AccumulatedFees == nil {
		return fmt.Errorf("incomplete pool state")
	}
	if s.TotalShares.IsZero() != s.ReserveBalance.IsZero() {
		return fmt.Errorf("pool state: shares %s with reserve %s", s.TotalShares.Dec(), s.ReserveBalance.Dec())
	}
	if !s.SharesBound && !s.TotalShares.IsZero() {
		return fmt.Errorf("pool state: shares outstanding without a share ledger")
	}
	return nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}
