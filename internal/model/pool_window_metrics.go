package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	ChainID        uint64
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	TradeCount     uint64
	BuyCount       uint64
	SellCount      uint64
	CreditVolume   string
	ReserveVolume  string
	Fees           string
	Deposits       string
	Withdrawals    string
	ClosingReserve *string
	FeeYield       *string
	APR            *string
}
