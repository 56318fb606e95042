package strategy

import (
	"context"
	"fmt"
	"math/big"

	"YieldRouter/internal/model"
)

// Valuer prices the vault position in want terms. Every figure is read live;
// want and the investment asset are assumed to trade 1:1.
type Valuer struct {
	env *Env
}

func NewValuer(env *Env) *Valuer {
	return &Valuer{env: env}
}

func (v *Valuer) BalanceOfWant(ctx context.Context) (*big.Int, error) {
	bal, err := v.env.Want.BalanceOf(ctx, v.env.Self)
	if err != nil {
		return nil, external("want balance", err)
	}
	return bal, nil
}

func (v *Valuer) BalanceOfInvestmentToken(ctx context.Context) (*big.Int, error) {
	bal, err := v.env.Investment.BalanceOf(ctx, v.env.Self)
	if err != nil {
		return nil, external("investment balance", err)
	}
	return bal, nil
}

func (v *Valuer) BalanceOfShares(ctx context.Context) (*big.Int, error) {
	bal, err := v.env.Vault.BalanceOf(ctx, v.env.Self)
	if err != nil {
		return nil, external("share balance", err)
	}
	return bal, nil
}

// ValueOfInvestment returns shares * pricePerShare / 10^decimals, rounded down.
func (v *Valuer) ValueOfInvestment(ctx context.Context) (*big.Int, error) {
	shares, err := v.BalanceOfShares(ctx)
	if err != nil {
		return nil, err
	}
	pps, unit, err := v.priceAndUnit(ctx)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Mul(shares, pps)
	return value.Quo(value, unit), nil
}

// TotalAssets returns idle want plus the value of the vault position.
func (v *Valuer) TotalAssets(ctx context.Context) (*big.Int, error) {
	idle, err := v.BalanceOfWant(ctx)
	if err != nil {
		return nil, err
	}
	value, err := v.ValueOfInvestment(ctx)
	if err != nil {
		return nil, err
	}
	return value.Add(value, idle), nil
}

// SharesForValue returns amount * 10^decimals / pricePerShare, rounded down.
func (v *Valuer) SharesForValue(ctx context.Context, amount *big.Int) (*big.Int, error) {
	pps, unit, err := v.priceAndUnit(ctx)
	if err != nil {
		return nil, err
	}
	if pps.Sign() == 0 {
		return nil, fmt.Errorf("shares for value: %w: vault price per share is zero", model.ErrExternalCallFailed)
	}
	shares := new(big.Int).Mul(amount, unit)
	return shares.Quo(shares, pps), nil
}

// Snapshot reads the whole position in one pass.
func (v *Valuer) Snapshot(ctx context.Context) (model.PositionSnapshot, error) {
	var snap model.PositionSnapshot
	var err error
	if snap.Idle, err = v.BalanceOfWant(ctx); err != nil {
		return snap, err
	}
	if snap.InvestmentIdle, err = v.BalanceOfInvestmentToken(ctx); err != nil {
		return snap, err
	}
	if snap.Shares, err = v.BalanceOfShares(ctx); err != nil {
		return snap, err
	}
	pps, unit, err := v.priceAndUnit(ctx)
	if err != nil {
		return snap, err
	}
	snap.PricePerShare = pps
	snap.ValueOfInvestment = new(big.Int).Mul(snap.Shares, pps)
	snap.ValueOfInvestment.Quo(snap.ValueOfInvestment, unit)
	snap.TotalAssets = new(big.Int).Add(snap.Idle, snap.ValueOfInvestment)
	return snap, nil
}

func (v *Valuer) priceAndUnit(ctx context.Context) (*big.Int, *big.Int, error) {
	pps, err := v.env.Vault.PricePerShare(ctx)
	if err != nil {
		return nil, nil, external("price per share", err)
	}
	decimals, err := v.env.Vault.Decimals(ctx)
	if err != nil {
		return nil, nil, external("share decimals", err)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return pps, unit, nil
}
