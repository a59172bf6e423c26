package model

// PoolInfo describes a deployed pool's fixed parameters.
type PoolInfo struct {
	ChainID        uint64     `json:"chain_id"`
	Address        string     `json:"address"`
	Owner          string     `json:"owner"`
	ExchangeRate   string     `json:"exchange_rate"`
	FeeNumerator   string     `json:"fee_numerator"`
	FeeDenominator string     `json:"fee_denominator"`
	CreditToken    *TokenMeta `json:"credit_token,omitempty"`
}

// TokenMeta captures ERC20 metadata of the on-chain credit token.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
