package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CreditLedger is the fungible credit-asset ledger the pool trades against.
type CreditLedger interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	// TransferFrom moves amount from -> to using spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// ShareLedger holds liquidity-share balances. Only the bound minter may mint or burn.
type ShareLedger interface {
	Mint(ctx context.Context, minter, to common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, minter, from common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	TotalSupply(ctx context.Context) (*uint256.Int, error)
}

// ReserveBank custodies the reserve currency. Value attached to a call is pulled
// from the caller's account; payouts are transfers out of the pool account.
type ReserveBank interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// Authorizer gates administrative operations.
type Authorizer interface {
	Authorize(caller common.Address) error
}

// Journal durably records a state transition before it becomes visible.
// ev is nil for configuration changes that emit no domain event.
type Journal interface {
	Record(ctx context.Context, state State, ev *Event) error
}

// Listener observes committed events. Listeners run while the pool is locked
// and must not call back into pool operations.
type Listener func(Event)

// OwnerOnly authorizes a single owner address.
type OwnerOnly struct {
	Owner common.Address
}

func (o OwnerOnly) Authorize(caller common.Address) error {
	if caller != o.Owner || caller == (common.Address{}) {
		return ErrNotOwner
	}
	return nil
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, State, *Event) error { return nil }
