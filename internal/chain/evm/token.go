package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is a token contract. Writes are sent from the client's account.
type ERC20 struct {
	client   *Client
	addr     common.Address
	contract *bind.BoundContract
}

func (c *Client) ERC20(addr common.Address) *ERC20 {
	return &ERC20{client: c, addr: addr, contract: c.bound(addr, erc20Parsed)}
}

func (t *ERC20) Address() common.Address { return t.addr }

func (t *ERC20) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return t.client.callBig(ctx, t.contract, "balanceOf", holder)
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.client.callBig(ctx, t.contract, "allowance", owner, spender)
}

func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	return t.client.transact(ctx, t.contract, "approve", spender, amount)
}

func (t *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.client.transact(ctx, t.contract, "transfer", to, amount)
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.client.call(ctx, t.contract, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("call decimals: %w", errUnexpectedOutput)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("call decimals: %w: %T", errUnexpectedOutput, out[0])
	}
	return d, nil
}
