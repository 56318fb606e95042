package strategy

import (
	"context"
	"math/big"
	"testing"

	"YieldRouter/internal/sim"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	self      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	governor  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	successor = common.HexToAddress("0x00000000000000000000000000000000000000a4")

	wantAddr  = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	investAdr = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	vaultAddr = common.HexToAddress("0x0000000000000000000000000000000000000b03")
	poolAddr  = common.HexToAddress("0x0000000000000000000000000000000000000b04")
)

const decimals = 6

var unit = big.NewInt(1_000_000)

type staticDebt struct {
	debt *big.Int
}

func (s *staticDebt) TrackedDebt(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(s.debt), nil
}

type fixture struct {
	world *sim.World
	debt  *staticDebt
	m     *Manager
}

func defaultParams() Params {
	return Params{MinExpectedSwapBps: 9900, MaxLossBps: 100, WantIndex: 0, InvestmentIndex: 1}
}

// newFixture deploys want, investment, a vault over the investment asset
// and a lossless pool between them.
func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	w := sim.NewWorld()
	w.DeployToken(wantAddr, decimals)
	w.DeployToken(investAdr, decimals)
	require.NoError(t, w.DeployVault(vaultAddr, investAdr))
	require.NoError(t, w.DeployPool(poolAddr, []common.Address{wantAddr, investAdr}, 10000))

	debt := &staticDebt{debt: new(big.Int)}
	env := Env{
		Self:         self,
		Want:         w.Token(wantAddr, self),
		Investment:   w.Token(investAdr, self),
		Vault:        w.Vault(vaultAddr, self),
		Pool:         w.Pool(poolAddr, self),
		Debt:         debt,
		Checkpointer: w,
	}
	m, err := NewManager("StrategyCurveVault", env, params, []common.Address{governor}, zerolog.Nop())
	require.NoError(t, err)
	return &fixture{world: w, debt: debt, m: m}
}

func (f *fixture) mintWant(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.world.Mint(wantAddr, self, big.NewInt(amount)))
}

func (f *fixture) idle() *big.Int   { return f.world.Balance(wantAddr, self) }
func (f *fixture) shares() *big.Int { return f.world.Balance(vaultAddr, self) }

func (f *fixture) setPrice(t *testing.T, pps int64) {
	t.Helper()
	require.NoError(t, f.world.SetPricePerShare(vaultAddr, big.NewInt(pps)))
}

func n(v int64) *big.Int { return big.NewInt(v) }

type mockToken struct {
	mock.Mock
	addr common.Address
}

func (m *mockToken) Address() common.Address { return m.addr }

func (m *mockToken) BalanceOf(_ context.Context, holder common.Address) (*big.Int, error) {
	args := m.Called(holder)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockToken) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	args := m.Called(owner, spender)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockToken) Approve(_ context.Context, spender common.Address, amount *big.Int) error {
	args := m.Called(spender, amount.String())
	return args.Error(0)
}

func (m *mockToken) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	args := m.Called(to, amount.String())
	return args.Error(0)
}

type mockPool struct {
	mock.Mock
}

func (m *mockPool) Address() common.Address { return poolAddr }

func (m *mockPool) ExchangeUnderlying(_ context.Context, from, to int, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	args := m.Called(from, to, amountIn.String(), minAmountOut.String())
	out, _ := args.Get(0).(*big.Int)
	return out, args.Error(1)
}
