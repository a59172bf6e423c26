package model

import "time"

// PoolEvent is the flat, string-encoded form of a committed pool event.
// Amounts are base-10 strings so they survive JSON without precision loss.
type PoolEvent struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Credits   string    `json:"credits"`
	Reserve   string    `json:"reserve"`
	Shares    string    `json:"shares"`
	Fee       string    `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

// DepositEventData is the decoded Deposit payload.
type DepositEventData struct {
	Provider      string `json:"provider"`
	ReserveAmount string `json:"reserve_amount"`
	SharesMinted  string `json:"shares_minted"`
}

// TradeEventData is the decoded Sell or Buy payload. ReserveAmount is the net
// paid out for a sell and the gross paid in for a buy.
type TradeEventData struct {
	Trader        string `json:"trader"`
	CreditAmount  string `json:"credit_amount"`
	ReserveAmount string `json:"reserve_amount"`
	Fee           string `json:"fee"`
}

// WithdrawEventData is the decoded Withdraw payload.
type WithdrawEventData struct {
	Provider     string `json:"provider"`
	ReservePaid  string `json:"reserve_paid"`
	SharesBurned string `json:"shares_burned"`
}

// SweepEventData is the decoded Sweep payload.
type SweepEventData struct {
	Recipient    string `json:"recipient"`
	CreditAmount string `json:"credit_amount"`
}
