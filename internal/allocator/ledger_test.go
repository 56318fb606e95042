package allocator

import (
	"context"
	"math/big"
	"testing"

	"YieldRouter/internal/model"
	"YieldRouter/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*sim.World, *Ledger) {
	t.Helper()
	w := sim.NewWorld()
	w.DeployToken(wantAddr, 6)
	require.NoError(t, w.Mint(wantAddr, allocatorAddr, n(1_000)))
	l := NewLedger(allocatorAddr, wantAddr, w)
	require.NoError(t, l.AddStrategy(strategyAddr, n(600)))
	return w, l
}

func TestLedger_AddStrategyTwice(t *testing.T) {
	_, l := newLedger(t)
	assert.Error(t, l.AddStrategy(strategyAddr, n(1)))
}

func TestLedger_UnknownStrategy(t *testing.T) {
	_, l := newLedger(t)
	_, err := l.TrackedDebt(context.Background(), successorAddr)
	assert.Error(t, err)
}

func TestLedger_CreditBoundedByFunds(t *testing.T) {
	_, l := newLedger(t)
	credit, err := l.CreditAvailable(strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, n(600), credit)

	require.NoError(t, l.SetDebtLimit(strategyAddr, n(5_000)))
	credit, err = l.CreditAvailable(strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, n(1_000), credit)
}

func TestLedger_ReportRejectsInconsistentReturns(t *testing.T) {
	w, l := newLedger(t)
	ctx := context.Background()

	both := model.Return{Profit: n(1), Loss: n(1), DebtPayment: n(0)}
	_, err := l.Report(ctx, strategyAddr, both)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	tooMuchLoss := model.Return{Profit: n(0), Loss: n(1), DebtPayment: n(0)}
	_, err = l.Report(ctx, strategyAddr, tooMuchLoss)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	assert.Equal(t, n(1_000), w.Balance(wantAddr, allocatorAddr))
}

func TestLedger_ReportSettlementFailureKeepsAccount(t *testing.T) {
	w, l := newLedger(t)
	ctx := context.Background()
	_, err := l.Report(ctx, strategyAddr, model.ZeroReturn())
	require.NoError(t, err)
	require.Equal(t, n(600), w.Balance(wantAddr, strategyAddr))

	// The strategy claims a profit it does not hold.
	_, err = l.Report(ctx, strategyAddr, model.Return{Profit: n(900), Loss: new(big.Int), DebtPayment: new(big.Int)})
	require.Error(t, err)
	acct, err := l.Account(strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.TotalGain.Sign())
	assert.Equal(t, n(600), acct.TotalDebt)
}

func TestLedger_DebtOutstanding(t *testing.T) {
	_, l := newLedger(t)
	ctx := context.Background()
	_, err := l.Report(ctx, strategyAddr, model.ZeroReturn())
	require.NoError(t, err)

	require.NoError(t, l.Revoke(ctx, strategyAddr))
	due, err := l.DebtOutstanding(ctx, strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, n(600), due)
}
