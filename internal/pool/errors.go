package pool

import "errors"

// Validation errors are returned before any state is touched.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrPrerequisiteMissing = errors.New("share ledger not configured")
	ErrAlreadyConfigured   = errors.New("share ledger already configured")
	ErrNotOwner            = errors.New("caller is not the pool owner")
	ErrReentrant           = errors.New("reentrant pool call")
	ErrBusy                = errors.New("pool operation in progress")
)

// Solvency errors are returned after amounts are computed but before mutation.
var (
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrInsufficientPayment     = errors.New("insufficient payment")
	ErrInsufficientShares      = errors.New("insufficient shares")
	ErrInsufficientPoolBalance = errors.New("insufficient pool balance")
)

// IsValidation reports whether err was rejected by input or configuration checks.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrPrerequisiteMissing) ||
		errors.Is(err, ErrAlreadyConfigured)
}

// IsSolvency reports whether err was a solvency rejection.
func IsSolvency(err error) bool {
	return errors.Is(err, ErrInsufficientLiquidity) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrInsufficientShares) ||
		errors.Is(err, ErrInsufficientPoolBalance)
}
