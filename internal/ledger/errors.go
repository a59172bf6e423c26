package ledger

import "errors"

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnauthorizedMinter    = errors.New("unauthorized minter")
	ErrMinterAlreadySet      = errors.New("minter already set")
	ErrZeroAddress           = errors.New("zero address")
	ErrOverflow              = errors.New("amount overflow")
)
