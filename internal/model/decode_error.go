package model

// DecodeError records a journal log that could not be decoded.
type DecodeError struct {
	ChainID uint64 `json:"chain_id"`
	Seq     uint64 `json:"seq"`
	Address string `json:"address"`
	Topic0  string `json:"topic0"`
	Error   string `json:"error"`
}
