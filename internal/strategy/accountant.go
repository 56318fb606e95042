package strategy

import (
	"context"
	"math/big"

	"YieldRouter/internal/model"

	"github.com/rs/zerolog"
)

type liquidator interface {
	liquidate(ctx context.Context, amountNeeded *big.Int) (freed, loss *big.Int, err error)
}

// Accountant measures the position against the allocator's tracked debt.
type Accountant struct {
	env     *Env
	valuer  *Valuer
	gateway *Gateway
	liq     liquidator
	log     zerolog.Logger
}

func NewAccountant(env *Env, valuer *Valuer, gateway *Gateway, liq liquidator, log zerolog.Logger) *Accountant {
	return &Accountant{env: env, valuer: valuer, gateway: gateway, liq: liq, log: log}
}

// RealizeInvestmentProfit pulls any vault value above tracked debt back into
// want, so gains are reported instead of compounding as new principal.
func (a *Accountant) RealizeInvestmentProfit(ctx context.Context) error {
	debt, err := a.trackedDebt(ctx)
	if err != nil {
		return err
	}
	value, err := a.valuer.ValueOfInvestment(ctx)
	if err != nil {
		return err
	}
	if value.Cmp(debt) <= 0 {
		return nil
	}
	excess := new(big.Int).Sub(value, debt)
	a.log.Info().
		Str("debt", debt.String()).
		Str("value", value.String()).
		Str("excess", excess.String()).
		Msg("Realizing vault profit")
	return a.gateway.RedeemValue(ctx, excess)
}

// ComputeReturn realizes profit, frees debtOutstanding plus profit and nets
// the result so that profit and loss are never both nonzero.
func (a *Accountant) ComputeReturn(ctx context.Context, debtOutstanding *big.Int) (model.Return, error) {
	ret := model.ZeroReturn()

	debt, err := a.trackedDebt(ctx)
	if err != nil {
		return ret, err
	}
	if err := a.RealizeInvestmentProfit(ctx); err != nil {
		return ret, err
	}
	total, err := a.valuer.TotalAssets(ctx)
	if err != nil {
		return ret, err
	}
	profit := model.SubFloor(total, debt)

	freed, loss, err := a.liq.liquidate(ctx, new(big.Int).Add(debtOutstanding, profit))
	if err != nil {
		return ret, err
	}
	ret.DebtPayment = model.Min(freed, debtOutstanding)

	if loss.Cmp(profit) > 0 {
		ret.Loss = loss.Sub(loss, profit)
	} else {
		ret.Profit = profit.Sub(profit, loss)
	}
	return ret, nil
}

func (a *Accountant) trackedDebt(ctx context.Context) (*big.Int, error) {
	debt, err := a.env.Debt.TrackedDebt(ctx, a.env.Self)
	if err != nil {
		return nil, external("tracked debt", err)
	}
	return debt, nil
}
