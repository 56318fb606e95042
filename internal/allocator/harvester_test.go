package allocator

import (
	"context"
	"math/big"
	"testing"

	"YieldRouter/internal/model"
	"YieldRouter/internal/sim"
	"YieldRouter/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	allocatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	strategyAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	successorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	wantAddr   = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	investAddr = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	vaultAddr  = common.HexToAddress("0x0000000000000000000000000000000000000d03")
	poolAddr   = common.HexToAddress("0x0000000000000000000000000000000000000d04")
)

func n(v int64) *big.Int { return big.NewInt(v) }

type harness struct {
	world  *sim.World
	ledger *Ledger
	h      *Harvester
}

func newHarness(t *testing.T, funds, limit int64) *harness {
	t.Helper()
	w := sim.NewWorld()
	w.DeployToken(wantAddr, 6)
	w.DeployToken(investAddr, 6)
	require.NoError(t, w.DeployVault(vaultAddr, investAddr))
	require.NoError(t, w.DeployPool(poolAddr, []common.Address{wantAddr, investAddr}, 10000))
	require.NoError(t, w.Mint(wantAddr, allocatorAddr, n(funds)))

	ledger := NewLedger(allocatorAddr, wantAddr, w)
	require.NoError(t, ledger.AddStrategy(strategyAddr, n(limit)))

	m, err := strategy.NewManager("StrategyCurveVault", strategy.Env{
		Self:         strategyAddr,
		Want:         w.Token(wantAddr, strategyAddr),
		Investment:   w.Token(investAddr, strategyAddr),
		Vault:        w.Vault(vaultAddr, strategyAddr),
		Pool:         w.Pool(poolAddr, strategyAddr),
		Debt:         ledger,
		Checkpointer: w,
	}, strategy.Params{MinExpectedSwapBps: 9900, MaxLossBps: 100, WantIndex: 0, InvestmentIndex: 1}, nil, zerolog.Nop())
	require.NoError(t, err)

	return &harness{world: w, ledger: ledger, h: NewHarvester(m, ledger, zerolog.Nop())}
}

func (h *harness) account(t *testing.T) model.DebtAccount {
	t.Helper()
	acct, err := h.ledger.Account(strategyAddr)
	require.NoError(t, err)
	return acct
}

func TestHarvest_FirstCycleBorrowsAndDeploys(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()

	report, err := hs.h.Harvest(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.KindHarvest, report.Kind)
	assert.Equal(t, 0, report.Return.Profit.Sign())
	assert.Equal(t, n(0), report.DebtBefore)
	assert.Equal(t, n(5_000), report.DebtAfter)
	assert.Equal(t, n(5_000), report.Position.TotalAssets)
	assert.Equal(t, 0, report.Position.Idle.Sign())
	assert.Equal(t, n(5_000), hs.world.Balance(wantAddr, allocatorAddr))
}

func TestHarvest_ReportsProfitToAllocator(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)

	require.NoError(t, hs.world.SetPricePerShare(vaultAddr, n(1_100_000)))
	report, err := hs.h.Harvest(ctx)
	require.NoError(t, err)

	assert.Equal(t, n(499), report.Return.Profit)
	assert.Equal(t, 0, report.Return.Loss.Sign())
	acct := hs.account(t)
	assert.Equal(t, n(499), acct.TotalGain)
	assert.Equal(t, n(5_000), acct.TotalDebt)
	assert.Equal(t, n(5_499), hs.world.Balance(wantAddr, allocatorAddr))
	assert.Equal(t, 0, hs.world.Balance(wantAddr, strategyAddr).Sign())
}

func TestHarvest_RepaysDebtAboveLimit(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.SetPricePerShare(vaultAddr, n(1_100_000)))
	_, err = hs.h.Harvest(ctx)
	require.NoError(t, err)

	require.NoError(t, hs.ledger.SetDebtLimit(strategyAddr, n(2_000)))
	report, err := hs.h.Harvest(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Return.Profit.Sign())
	assert.Equal(t, n(1), report.Return.Loss)
	assert.Equal(t, n(2_999), report.Return.DebtPayment)
	acct := hs.account(t)
	assert.Equal(t, n(2_000), acct.TotalDebt)
	assert.Equal(t, n(1), acct.TotalLoss)
	assert.Equal(t, 0, report.DebtOutstanding.Sign())
}

func TestTend_DeploysIdleWant(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.Mint(wantAddr, strategyAddr, n(300)))

	report, err := hs.h.Tend(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.KindTend, report.Kind)
	assert.Equal(t, 0, report.Position.Idle.Sign())
	assert.Equal(t, n(5_300), report.Position.Shares)
	assert.Equal(t, n(5_000), hs.account(t).TotalDebt)
}

func TestWithdraw_RepaysFreedWant(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)

	report, err := hs.h.Withdraw(ctx, n(1_000))
	require.NoError(t, err)
	assert.Equal(t, n(1_000), report.Return.DebtPayment)
	assert.Equal(t, 0, report.Return.Loss.Sign())
	assert.Equal(t, n(4_000), hs.account(t).TotalDebt)
	assert.Equal(t, n(6_000), hs.world.Balance(wantAddr, allocatorAddr))
}

func TestWithdraw_ShortfallIsLoss(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.SetPricePerShare(vaultAddr, n(500_000)))

	report, err := hs.h.Withdraw(ctx, n(3_000))
	require.NoError(t, err)
	assert.Equal(t, n(2_500), report.Return.DebtPayment)
	assert.Equal(t, n(500), report.Return.Loss)
	acct := hs.account(t)
	assert.Equal(t, n(2_000), acct.TotalDebt)
	assert.Equal(t, n(500), acct.TotalLoss)
}

func TestWindDown_ReturnsEverything(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.SetPricePerShare(vaultAddr, n(1_100_000)))

	report, err := hs.h.WindDown(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.KindWindDown, report.Kind)
	assert.Equal(t, n(500), report.Return.Profit)
	assert.Equal(t, n(5_000), report.Return.DebtPayment)
	assert.Equal(t, 0, report.Position.TotalAssets.Sign())

	acct := hs.account(t)
	assert.Equal(t, 0, acct.TotalDebt.Sign())
	assert.Equal(t, 0, acct.DebtLimit.Sign())
	assert.Equal(t, n(10_500), hs.world.Balance(wantAddr, allocatorAddr))
}

func TestMigrate_MovesSharesWantAndDebt(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.Mint(wantAddr, strategyAddr, n(42)))

	report, err := hs.h.Migrate(ctx, successorAddr)
	require.NoError(t, err)
	assert.Equal(t, model.KindMigrate, report.Kind)
	assert.Equal(t, n(5_000), report.DebtBefore)

	assert.Equal(t, n(5_000), hs.world.Balance(vaultAddr, successorAddr))
	assert.Equal(t, n(42), hs.world.Balance(wantAddr, successorAddr))
	_, err = hs.ledger.Account(strategyAddr)
	assert.Error(t, err)
	acct, err := hs.ledger.Account(successorAddr)
	require.NoError(t, err)
	assert.Equal(t, n(5_000), acct.TotalDebt)
}

func TestHarvest_FailureKeepsBooks(t *testing.T) {
	hs := newHarness(t, 10_000, 5_000)
	ctx := context.Background()
	_, err := hs.h.Harvest(ctx)
	require.NoError(t, err)
	require.NoError(t, hs.world.SetPricePerShare(vaultAddr, n(1_100_000)))
	require.NoError(t, hs.world.SetPoolOutput(poolAddr, 9000))

	_, err = hs.h.Harvest(ctx)
	require.ErrorIs(t, err, model.ErrSlippageExceeded)
	acct := hs.account(t)
	assert.Equal(t, 0, acct.TotalGain.Sign())
	assert.Equal(t, n(5_000), acct.TotalDebt)
	assert.Equal(t, n(5_000), hs.world.Balance(vaultAddr, strategyAddr))
}
