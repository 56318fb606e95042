// Package allocator is the upstream side of the engine: it tracks how much
// each strategy owes and drives the strategy's lifecycle hooks.
package allocator

import (
	"context"
	"math/big"

	"YieldRouter/internal/chain"
	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Strategy is the hook surface a strategy exposes to its allocator.
type Strategy interface {
	Name() string
	Address() common.Address
	EstimatedTotalAssets(ctx context.Context) (*big.Int, error)
	Position(ctx context.Context) (model.PositionSnapshot, error)
	PrepareReturn(ctx context.Context, debtOutstanding *big.Int) (model.Return, error)
	AdjustPosition(ctx context.Context, debtOutstanding *big.Int) error
	LiquidatePosition(ctx context.Context, amountNeeded *big.Int) (freed, loss *big.Int, err error)
	LiquidateAllPositions(ctx context.Context) (*big.Int, error)
	PrepareMigration(ctx context.Context, destination common.Address) error
}

// Book keeps the allocator's debt accounts.
type Book interface {
	chain.DebtSource

	DebtOutstanding(ctx context.Context, strategy common.Address) (*big.Int, error)
	// Report books a strategy's return, settles funds and returns the debt
	// the strategy should keep in reserve for the next cycle.
	Report(ctx context.Context, strategy common.Address, ret model.Return) (*big.Int, error)
	// Repay books want returned outside a report, with any shortfall as loss.
	Repay(ctx context.Context, strategy common.Address, freed, loss *big.Int) error
	// Revoke sets the strategy's debt limit to zero so all of its debt falls due.
	Revoke(ctx context.Context, strategy common.Address) error
	// Migrate moves the debt account and idle want from one strategy to another.
	Migrate(ctx context.Context, from, to common.Address) error
}
