package api

import (
	"errors"
	"net/http"

	"carbonPool/internal/ledger"
	"carbonPool/internal/pool"
)

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrReentrant), errors.Is(err, pool.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, pool.ErrNotOwner):
		return http.StatusForbidden
	case pool.IsValidation(err), errors.Is(err, ledger.ErrZeroAddress):
		return http.StatusBadRequest
	case pool.IsSolvency(err),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusConflict:
		return "insufficient funds"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusLocked:
		return "operation in progress"
	case http.StatusNotFound:
		return "not found"
	default:
		return "internal error"
	}
}
