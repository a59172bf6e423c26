package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	minter = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestTokenMintRestrictedToMinter(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("shares", nil)

	err := tok.Mint(ctx, minter, alice, u(10))
	require.ErrorIs(t, err, ErrUnauthorizedMinter)

	require.NoError(t, tok.SetMinter(minter))
	require.ErrorIs(t, tok.SetMinter(bob), ErrMinterAlreadySet)
	require.NoError(t, tok.Mint(ctx, minter, alice, u(10)))
	require.ErrorIs(t, tok.Burn(ctx, alice, alice, u(1)), ErrUnauthorizedMinter)

	supply, err := tok.TotalSupply(ctx)
	require.NoError(t, err)
	require.Equal(t, "10", supply.Dec())

	require.ErrorIs(t, tok.Burn(ctx, minter, alice, u(11)), ErrInsufficientBalance)
	require.NoError(t, tok.Burn(ctx, minter, alice, u(4)))
	bal, err := tok.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "6", bal.Dec())
}

func TestTokenTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("credits", nil)
	require.NoError(t, tok.SetMinter(minter))
	require.NoError(t, tok.Mint(ctx, minter, alice, u(100)))

	err := tok.TransferFrom(ctx, bob, alice, bob, u(5))
	require.True(t, errors.Is(err, ErrInsufficientAllowance), "got %v", err)

	require.NoError(t, tok.Approve(ctx, alice, bob, u(30)))
	require.NoError(t, tok.TransferFrom(ctx, bob, alice, bob, u(20)))
	require.Equal(t, "10", tok.Allowance(alice, bob).Dec())

	require.ErrorIs(t, tok.TransferFrom(ctx, bob, alice, bob, u(11)), ErrInsufficientAllowance)

	ab, _ := tok.BalanceOf(ctx, alice)
	bb, _ := tok.BalanceOf(ctx, bob)
	require.Equal(t, "80", ab.Dec())
	require.Equal(t, "20", bb.Dec())
}

func TestTokenTransferFromInsufficientBalanceKeepsAllowance(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("credits", nil)
	require.NoError(t, tok.SetMinter(minter))
	require.NoError(t, tok.Mint(ctx, minter, alice, u(3)))
	require.NoError(t, tok.Approve(ctx, alice, bob, u(10)))

	require.ErrorIs(t, tok.TransferFrom(ctx, bob, alice, bob, u(5)), ErrInsufficientBalance)
	require.Equal(t, "10", tok.Allowance(alice, bob).Dec())
}

func TestTokenSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("credits", nil)
	require.NoError(t, tok.SetMinter(minter))
	require.NoError(t, tok.Mint(ctx, minter, alice, u(100)))
	require.NoError(t, tok.Approve(ctx, alice, bob, u(7)))

	data, err := tok.Snapshot()
	require.NoError(t, err)

	restored := NewToken("credits", nil)
	require.NoError(t, restored.Restore(data))
	require.Equal(t, minter, restored.Minter())
	require.Equal(t, "7", restored.Allowance(alice, bob).Dec())
	bal, _ := restored.BalanceOf(ctx, alice)
	require.Equal(t, "100", bal.Dec())

	require.Error(t, NewToken("shares", nil).Restore(data))
}

func TestBankTransferAndSnapshot(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(nil)
	require.NoError(t, bank.Fund(alice, u(50)))
	require.ErrorIs(t, bank.Transfer(ctx, alice, bob, u(51)), ErrInsufficientBalance)
	require.NoError(t, bank.Transfer(ctx, alice, bob, u(20)))
	require.ErrorIs(t, bank.Transfer(ctx, alice, common.Address{}, u(1)), ErrZeroAddress)

	data, err := bank.Snapshot()
	require.NoError(t, err)
	restored := NewBank(nil)
	require.NoError(t, restored.Restore(data))
	bb, _ := restored.BalanceOf(ctx, bob)
	require.Equal(t, "20", bb.Dec())
	require.Equal(t, "50", restored.Issued().Dec())
}
