package model

// PoolState is the persisted pool accounting snapshot.
type PoolState struct {
	ReserveBalance  string `json:"reserve_balance"`
	TotalShares     string `json:"total_shares"`
	AccumulatedFees string `json:"accumulated_fees"`
	Sequence        uint64 `json:"sequence"`
	SharesBound     bool   `json:"shares_bound"`
	Status          string `json:"status"`
}
