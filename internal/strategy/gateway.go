package strategy

import (
	"context"
	"fmt"
	"math/big"

	"YieldRouter/internal/chain"
	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Gateway moves value between want, the investment asset and vault shares.
// Amounts pass through the pool without decimal normalization, so the
// minimum output is only meaningful when both assets share decimals.
type Gateway struct {
	env    *Env
	params *Params
	valuer *Valuer
	log    zerolog.Logger
}

func NewGateway(env *Env, params *Params, valuer *Valuer, log zerolog.Logger) *Gateway {
	return &Gateway{env: env, params: params, valuer: valuer, log: log}
}

// EnsureAllowance makes sure spender may pull amount of token from the engine.
// An insufficient allowance is first reset to zero and then raised.
func (g *Gateway) EnsureAllowance(ctx context.Context, token chain.Token, spender common.Address, amount *big.Int) error {
	current, err := token.Allowance(ctx, g.env.Self, spender)
	if err != nil {
		return external("read allowance", err)
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	if err := token.Approve(ctx, spender, new(big.Int)); err != nil {
		return external("reset allowance", err)
	}
	if err := token.Approve(ctx, spender, amount); err != nil {
		return external("raise allowance", err)
	}
	return nil
}

// Convert swaps amount of coin from into coin to, requiring at least
// amount * minExpectedSwapBps / 10000 back.
func (g *Gateway) Convert(ctx context.Context, from, to int, amount *big.Int) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	src, err := g.tokenAt(from)
	if err != nil {
		return nil, err
	}
	if err := g.EnsureAllowance(ctx, src, g.env.Pool.Address(), amount); err != nil {
		return nil, err
	}
	minOut := model.ApplyBps(amount, g.params.MinExpectedSwapBps)
	out, err := g.env.Pool.ExchangeUnderlying(ctx, from, to, amount, minOut)
	if err != nil {
		return nil, external("exchange", err)
	}
	g.log.Debug().
		Int("from", from).
		Int("to", to).
		Str("amount_in", amount.String()).
		Str("min_out", minOut.String()).
		Str("amount_out", out.String()).
		Msg("Converted")
	return out, nil
}

// DepositToInvestment converts amount of want and deposits the engine's whole
// investment-asset balance into the vault.
func (g *Gateway) DepositToInvestment(ctx context.Context, amount *big.Int) error {
	if _, err := g.Convert(ctx, g.params.WantIndex, g.params.InvestmentIndex, amount); err != nil {
		return fmt.Errorf("deposit to investment: %w", err)
	}
	bal, err := g.valuer.BalanceOfInvestmentToken(ctx)
	if err != nil {
		return err
	}
	if bal.Sign() <= 0 {
		return nil
	}
	if err := g.EnsureAllowance(ctx, g.env.Investment, g.env.Vault.Address(), bal); err != nil {
		return err
	}
	if err := g.env.Vault.Deposit(ctx); err != nil {
		return external("vault deposit", err)
	}
	return nil
}

// WithdrawFromInvestment converts amount of the investment asset back to want.
func (g *Gateway) WithdrawFromInvestment(ctx context.Context, amount *big.Int) error {
	if _, err := g.Convert(ctx, g.params.InvestmentIndex, g.params.WantIndex, amount); err != nil {
		return fmt.Errorf("withdraw from investment: %w", err)
	}
	return nil
}

// RedeemValue redeems shares worth value (capped at the share balance) and
// converts the proceeds back to want.
func (g *Gateway) RedeemValue(ctx context.Context, value *big.Int) error {
	shares, err := g.valuer.SharesForValue(ctx, value)
	if err != nil {
		return err
	}
	held, err := g.valuer.BalanceOfShares(ctx)
	if err != nil {
		return err
	}
	shares = model.Min(shares, held)
	if shares.Sign() > 0 {
		if err := g.env.Vault.Withdraw(ctx, shares, g.env.Self, g.params.MaxLossBps); err != nil {
			return external("vault withdraw", err)
		}
	}
	bal, err := g.valuer.BalanceOfInvestmentToken(ctx)
	if err != nil {
		return err
	}
	return g.WithdrawFromInvestment(ctx, bal)
}

func (g *Gateway) tokenAt(index int) (chain.Token, error) {
	switch index {
	case g.params.WantIndex:
		return g.env.Want, nil
	case g.params.InvestmentIndex:
		return g.env.Investment, nil
	}
	return nil, fmt.Errorf("%w: pool index %d is neither want nor investment", model.ErrInvalidParameter, index)
}
