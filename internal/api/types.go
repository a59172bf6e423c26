package api

import (
	"carbonPool/internal/model"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type depositRequest struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type withdrawRequest struct {
	Provider string `json:"provider"`
	Shares   string `json:"shares"`
}

type sellRequest struct {
	Seller  string `json:"seller"`
	Credits string `json:"credits"`
}

type buyRequest struct {
	Buyer   string `json:"buyer"`
	Credits string `json:"credits"`
	Paid    string `json:"paid"`
}

type approveRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type bindRequest struct {
	Caller string `json:"caller"`
}

type sweepRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	// Amount may be empty or "0" to sweep the whole balance.
	Amount string `json:"amount"`
}

// PoolResponse describes the pool and its committed state.
type PoolResponse struct {
	Info    model.PoolInfo  `json:"info"`
	State   model.PoolState `json:"state"`
	Custody string          `json:"custody"`
	Credits string          `json:"credits"`
	Surplus string          `json:"surplus"`
}

// AccountResponse lists an account's balances across the venue.
type AccountResponse struct {
	Address   string `json:"address"`
	Reserve   string `json:"reserve"`
	Credits   string `json:"credits"`
	Shares    string `json:"shares"`
	Allowance string `json:"allowance"`
}

// QuoteResponse prices a trade without executing it.
type QuoteResponse struct {
	Credits string `json:"credits"`
	Gross   string `json:"gross"`
	Fee     string `json:"fee"`
	Net     string `json:"net"`
}

// StatusResponse acknowledges an operation without an event.
type StatusResponse struct {
	Status string `json:"status"`
}
