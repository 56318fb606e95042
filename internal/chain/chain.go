// Package chain declares the contracts the engine talks to. Every call on a
// Token, vault or pool handle acts on behalf of the account the handle is
// bound to.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20-style balance ledger.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// InvestmentVault issues transferable shares against deposits of its token.
type InvestmentVault interface {
	Token

	// Deposit consumes the caller's full balance of the vault token.
	Deposit(ctx context.Context) error
	// Withdraw redeems shares to recipient, failing if the realized loss exceeds maxLossBps.
	Withdraw(ctx context.Context, shares *big.Int, recipient common.Address, maxLossBps uint64) error
	PricePerShare(ctx context.Context) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
	UnderlyingToken(ctx context.Context) (common.Address, error)
}

// ExchangePool converts between the assets it holds by index.
type ExchangePool interface {
	Address() common.Address
	ExchangeUnderlying(ctx context.Context, from, to int, amountIn, minAmountOut *big.Int) (*big.Int, error)
}

// DebtSource reports what the upstream allocator believes a strategy owes.
type DebtSource interface {
	TrackedDebt(ctx context.Context, strategy common.Address) (*big.Int, error)
}

// Checkpointer is implemented by backends that can roll back state.
// Checkpoints nest: RevertTo and Commit discard id and every later checkpoint.
type Checkpointer interface {
	Checkpoint() int
	RevertTo(id int) error
	Commit(id int)
}
