package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Pool is a curve-style pool exchanging underlying coins by index.
type Pool struct {
	client   *Client
	addr     common.Address
	contract *bind.BoundContract

	mu    sync.Mutex
	coins map[int]common.Address
}

func (c *Client) Pool(addr common.Address) *Pool {
	return &Pool{client: c, addr: addr, contract: c.bound(addr, poolParsed), coins: make(map[int]common.Address)}
}

func (p *Pool) Address() common.Address { return p.addr }

// UnderlyingCoin returns the token at index i, cached after the first read.
func (p *Pool) UnderlyingCoin(ctx context.Context, i int) (common.Address, error) {
	p.mu.Lock()
	addr, ok := p.coins[i]
	p.mu.Unlock()
	if ok {
		return addr, nil
	}
	addr, err := p.client.callAddress(ctx, p.contract, "underlying_coins", big.NewInt(int64(i)))
	if err != nil {
		return common.Address{}, err
	}
	p.mu.Lock()
	p.coins[i] = addr
	p.mu.Unlock()
	return addr, nil
}

// ExchangeUnderlying quotes the swap first and refuses to send when the
// quote is below minAmountOut. The amount received is measured from the
// caller's balance of the target coin, since older pools return nothing.
func (p *Pool) ExchangeUnderlying(ctx context.Context, from, to int, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	i, j := big.NewInt(int64(from)), big.NewInt(int64(to))
	quote, err := p.client.callBig(ctx, p.contract, "get_dy_underlying", i, j, amountIn)
	if err != nil {
		return nil, err
	}
	if quote.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("exchange: quoted %s, want at least %s: %w", quote, minAmountOut, model.ErrSlippageExceeded)
	}

	coin, err := p.UnderlyingCoin(ctx, to)
	if err != nil {
		return nil, err
	}
	target := p.client.ERC20(coin)
	before, err := target.BalanceOf(ctx, p.client.From())
	if err != nil {
		return nil, err
	}
	if err := p.client.transact(ctx, p.contract, "exchange_underlying", i, j, amountIn, minAmountOut); err != nil {
		return nil, err
	}
	after, err := target.BalanceOf(ctx, p.client.From())
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(after, before), nil
}
