package strategy

import (
	"context"
	"errors"
	"testing"

	"YieldRouter/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockGateway(params *Params, want, investment *mockToken, pool *mockPool) *Gateway {
	env := &Env{Self: self, Want: want, Investment: investment, Pool: pool}
	return NewGateway(env, params, NewValuer(env), zerolog.Nop())
}

func TestEnsureAllowance_ResetsBeforeRaising(t *testing.T) {
	want := &mockToken{addr: wantAddr}
	params := defaultParams()
	g := newMockGateway(&params, want, &mockToken{addr: investAdr}, &mockPool{})

	want.On("Allowance", self, poolAddr).Return(n(5), nil).Once()
	first := want.On("Approve", poolAddr, "0").Return(nil).Once()
	want.On("Approve", poolAddr, "100").Return(nil).Once().NotBefore(first)

	require.NoError(t, g.EnsureAllowance(context.Background(), want, poolAddr, n(100)))
	want.AssertExpectations(t)
}

func TestEnsureAllowance_SufficientSkipsApprove(t *testing.T) {
	want := &mockToken{addr: wantAddr}
	params := defaultParams()
	g := newMockGateway(&params, want, &mockToken{addr: investAdr}, &mockPool{})

	want.On("Allowance", self, poolAddr).Return(n(100), nil).Once()

	require.NoError(t, g.EnsureAllowance(context.Background(), want, poolAddr, n(100)))
	want.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)
}

func TestConvert_PassesMinimumOutput(t *testing.T) {
	want := &mockToken{addr: wantAddr}
	pool := &mockPool{}
	params := defaultParams()
	params.MinExpectedSwapBps = 9950
	g := newMockGateway(&params, want, &mockToken{addr: investAdr}, pool)

	want.On("Allowance", self, poolAddr).Return(n(1_000_000), nil)
	pool.On("ExchangeUnderlying", 0, 1, "12345", "12283").Return(n(12300), nil).Once()

	out, err := g.Convert(context.Background(), 0, 1, n(12345))
	require.NoError(t, err)
	assert.Equal(t, n(12300), out)
	pool.AssertExpectations(t)
}

func TestConvert_ZeroAmountIsNoop(t *testing.T) {
	pool := &mockPool{}
	params := defaultParams()
	g := newMockGateway(&params, &mockToken{addr: wantAddr}, &mockToken{addr: investAdr}, pool)

	out, err := g.Convert(context.Background(), 0, 1, n(0))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Sign())
	pool.AssertNotCalled(t, "ExchangeUnderlying", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConvert_ErrorKinds(t *testing.T) {
	want := &mockToken{addr: wantAddr}
	pool := &mockPool{}
	params := defaultParams()
	g := newMockGateway(&params, want, &mockToken{addr: investAdr}, pool)
	want.On("Allowance", self, poolAddr).Return(n(1_000), nil)

	pool.On("ExchangeUnderlying", 0, 1, "100", "99").Return(nil, model.ErrSlippageExceeded).Once()
	_, err := g.Convert(context.Background(), 0, 1, n(100))
	assert.ErrorIs(t, err, model.ErrSlippageExceeded)
	assert.NotErrorIs(t, err, model.ErrExternalCallFailed)

	cause := errors.New("execution reverted")
	pool.On("ExchangeUnderlying", 0, 1, "100", "99").Return(nil, cause).Once()
	_, err = g.Convert(context.Background(), 0, 1, n(100))
	assert.ErrorIs(t, err, model.ErrExternalCallFailed)
	assert.ErrorIs(t, err, cause)
}

func TestConvert_UnknownIndex(t *testing.T) {
	params := defaultParams()
	g := newMockGateway(&params, &mockToken{addr: wantAddr}, &mockToken{addr: investAdr}, &mockPool{})

	_, err := g.Convert(context.Background(), 3, 1, n(10))
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestDepositToInvestment_DepositsWholeInvestmentBalance(t *testing.T) {
	f := newFixture(t, defaultParams())
	ctx := context.Background()
	f.mintWant(t, 300)
	require.NoError(t, f.world.Mint(investAdr, self, n(20)))

	require.NoError(t, f.m.gateway.DepositToInvestment(ctx, n(100)))
	assert.Equal(t, n(200), f.idle())
	assert.Equal(t, n(120), f.shares())
	assert.Equal(t, 0, f.world.Balance(investAdr, self).Sign())
}
