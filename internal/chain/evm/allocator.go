package evm

import (
	"context"
	"fmt"
	"math/big"

	"YieldRouter/internal/chain"
	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// strategies() output positions.
const (
	fieldDebtRatio = 2
	fieldTotalDebt = 6
	fieldTotalGain = 7
	fieldTotalLoss = 8
)

// Allocator is a yearn v2 vault seen from one of its strategies. The
// client's account must be the strategy registered with the vault.
type Allocator struct {
	client   *Client
	addr     common.Address
	want     chain.Token
	contract *bind.BoundContract
}

func (c *Client) Allocator(addr, want common.Address) *Allocator {
	return &Allocator{client: c, addr: addr, want: c.ERC20(want), contract: c.bound(addr, allocatorParsed)}
}

func (a *Allocator) Address() common.Address { return a.addr }

// Account reads the allocator's record of strategy.
func (a *Allocator) Account(ctx context.Context, strategy common.Address) (model.DebtAccount, error) {
	out, err := a.client.call(ctx, a.contract, "strategies", strategy)
	if err != nil {
		return model.DebtAccount{}, err
	}
	if len(out) <= fieldTotalLoss {
		return model.DebtAccount{}, fmt.Errorf("strategies: %w: %d fields", errUnexpectedOutput, len(out))
	}
	fields := make([]*big.Int, len(out))
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok {
			return model.DebtAccount{}, fmt.Errorf("strategies field %d: %w: %T", i, errUnexpectedOutput, v)
		}
		fields[i] = b
	}
	// DebtLimit carries the vault's debtRatio, in basis points of vault assets.
	acc := model.DebtAccount{
		Strategy:  strategy,
		TotalDebt: fields[fieldTotalDebt],
		DebtLimit: fields[fieldDebtRatio],
		TotalGain: fields[fieldTotalGain],
		TotalLoss: fields[fieldTotalLoss],
	}
	return acc, nil
}

func (a *Allocator) TrackedDebt(ctx context.Context, strategy common.Address) (*big.Int, error) {
	acc, err := a.Account(ctx, strategy)
	if err != nil {
		return nil, err
	}
	return acc.TotalDebt, nil
}

func (a *Allocator) DebtOutstanding(ctx context.Context, strategy common.Address) (*big.Int, error) {
	return a.client.callBig(ctx, a.contract, "debtOutstanding", strategy)
}

// Report approves what the vault will pull, sends report() and returns the
// debt still outstanding afterwards.
func (a *Allocator) Report(ctx context.Context, strategy common.Address, ret model.Return) (*big.Int, error) {
	if err := a.self(strategy); err != nil {
		return nil, err
	}
	owed := new(big.Int).Add(ret.Profit, ret.DebtPayment)
	if owed.Sign() > 0 {
		if err := ensureAllowance(ctx, a.want, strategy, a.addr, owed); err != nil {
			return nil, fmt.Errorf("approve report funds: %w", err)
		}
	}
	if err := a.client.transact(ctx, a.contract, "report", ret.Profit, ret.Loss, ret.DebtPayment); err != nil {
		return nil, err
	}
	return a.DebtOutstanding(ctx, strategy)
}

// Repay is not available: a yearn vault pulls withdrawals through the
// strategy contract, which an externally owned account cannot serve.
func (a *Allocator) Repay(context.Context, common.Address, *big.Int, *big.Int) error {
	return fmt.Errorf("repay: %w: vault pulls withdrawals through the strategy contract", model.ErrExternalCallFailed)
}

// Revoke sets the strategy's debt ratio to zero.
func (a *Allocator) Revoke(ctx context.Context, strategy common.Address) error {
	if err := a.self(strategy); err != nil {
		return err
	}
	return a.client.transact(ctx, a.contract, "revokeStrategy", strategy)
}

// Migrate is governance-only on a yearn vault.
func (a *Allocator) Migrate(context.Context, common.Address, common.Address) error {
	return fmt.Errorf("migrate: %w: requires vault governance", model.ErrUnauthorized)
}

// ensureAllowance lets spender pull amount of token from owner. An
// insufficient allowance is reset to zero before it is raised.
func ensureAllowance(ctx context.Context, token chain.Token, owner, spender common.Address, amount *big.Int) error {
	current, err := token.Allowance(ctx, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	if current.Sign() > 0 {
		if err := token.Approve(ctx, spender, new(big.Int)); err != nil {
			return fmt.Errorf("reset allowance: %w", err)
		}
	}
	if err := token.Approve(ctx, spender, amount); err != nil {
		return fmt.Errorf("raise allowance: %w", err)
	}
	return nil
}

func (a *Allocator) self(strategy common.Address) error {
	if strategy != a.client.From() {
		return fmt.Errorf("%w: %s cannot act for strategy %s", model.ErrUnauthorized, a.client.From().Hex(), strategy.Hex())
	}
	return nil
}
