package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is a yearn v2 style share vault. Its shares are an ERC20.
type Vault struct {
	ERC20
}

func (c *Client) Vault(addr common.Address) *Vault {
	return &Vault{ERC20: ERC20{client: c, addr: addr, contract: c.bound(addr, vaultParsed)}}
}

// Deposit deposits the caller's whole balance of the underlying token.
func (v *Vault) Deposit(ctx context.Context) error {
	return v.client.transact(ctx, v.contract, "deposit")
}

func (v *Vault) Withdraw(ctx context.Context, shares *big.Int, recipient common.Address, maxLossBps uint64) error {
	return v.client.transact(ctx, v.contract, "withdraw", shares, recipient, new(big.Int).SetUint64(maxLossBps))
}

func (v *Vault) PricePerShare(ctx context.Context) (*big.Int, error) {
	return v.client.callBig(ctx, v.contract, "pricePerShare")
}

func (v *Vault) Decimals(ctx context.Context) (uint8, error) {
	d, err := v.client.callBig(ctx, v.contract, "decimals")
	if err != nil {
		return 0, err
	}
	if !d.IsUint64() || d.Uint64() > 77 {
		return 0, fmt.Errorf("vault decimals %s: %w", d, errUnexpectedOutput)
	}
	return uint8(d.Uint64()), nil
}

func (v *Vault) UnderlyingToken(ctx context.Context) (common.Address, error) {
	return v.client.callAddress(ctx, v.contract, "token")
}
