package sim

import (
	"context"
	"fmt"
	"math/big"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a handle on a simulated token acting as a fixed account.
type Token struct {
	world *World
	addr  common.Address
	as    common.Address
}

// Token returns a handle on token addr whose writes are sent by account as.
func (w *World) Token(addr, as common.Address) *Token {
	return &Token{world: w, addr: addr, as: as}
}

func (t *Token) Address() common.Address { return t.addr }

func (t *Token) BalanceOf(_ context.Context, holder common.Address) (*big.Int, error) {
	t.world.mu.Lock()
	defer t.world.mu.Unlock()
	ts, err := t.world.token(t.addr)
	if err != nil {
		return nil, err
	}
	return ts.balanceOf(holder), nil
}

func (t *Token) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	t.world.mu.Lock()
	defer t.world.mu.Unlock()
	ts, err := t.world.token(t.addr)
	if err != nil {
		return nil, err
	}
	return ts.allowance(owner, spender), nil
}

func (t *Token) Approve(_ context.Context, spender common.Address, amount *big.Int) error {
	t.world.mu.Lock()
	defer t.world.mu.Unlock()
	ts, err := t.world.token(t.addr)
	if err != nil {
		return err
	}
	ts.approve(t.as, spender, amount)
	return nil
}

func (t *Token) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	t.world.mu.Lock()
	defer t.world.mu.Unlock()
	ts, err := t.world.token(t.addr)
	if err != nil {
		return err
	}
	return ts.transfer(t.as, to, amount)
}

// Vault is a handle on a simulated share vault. Deposits mint shares at the
// current price per share; withdrawals pay nominal value less the configured
// withdraw loss and mint any yield the vault does not hold.
type Vault struct {
	Token
}

// Vault returns a handle on vault addr acting as account as.
func (w *World) Vault(addr, as common.Address) *Vault {
	return &Vault{Token: Token{world: w, addr: addr, as: as}}
}

func (v *Vault) Deposit(_ context.Context) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()
	vs, shares, err := w.vault(v.addr)
	if err != nil {
		return err
	}
	if vs.pricePerShare.Sign() == 0 {
		return fmt.Errorf("vault deposit: zero price per share")
	}
	underlying := w.st.tokens[vs.token]
	amount := underlying.balanceOf(v.as)
	if amount.Sign() == 0 {
		return fmt.Errorf("vault deposit: nothing to deposit")
	}
	if err := underlying.spend(v.as, v.addr, amount); err != nil {
		return fmt.Errorf("vault deposit: %w", err)
	}
	if err := underlying.transfer(v.as, v.addr, amount); err != nil {
		return fmt.Errorf("vault deposit: %w", err)
	}
	minted := new(big.Int).Mul(amount, pow10(vs.decimals))
	minted.Quo(minted, vs.pricePerShare)
	shares.credit(v.as, minted)
	return nil
}

func (v *Vault) Withdraw(_ context.Context, amount *big.Int, recipient common.Address, maxLossBps uint64) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()
	vs, shares, err := w.vault(v.addr)
	if err != nil {
		return err
	}
	if vs.withdrawLoss > maxLossBps {
		return fmt.Errorf("vault withdraw: loss %d bps exceeds tolerance %d bps", vs.withdrawLoss, maxLossBps)
	}
	if err := shares.debit(v.as, amount); err != nil {
		return fmt.Errorf("vault withdraw: %w", err)
	}
	value := new(big.Int).Mul(amount, vs.pricePerShare)
	value.Quo(value, pow10(vs.decimals))
	value.Sub(value, model.ApplyBps(value, vs.withdrawLoss))

	underlying := w.st.tokens[vs.token]
	if held := underlying.balanceOf(v.addr); held.Cmp(value) < 0 {
		underlying.credit(v.addr, new(big.Int).Sub(value, held))
	}
	return underlying.transfer(v.addr, recipient, value)
}

func (v *Vault) PricePerShare(_ context.Context) (*big.Int, error) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	vs, _, err := v.world.vault(v.addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(vs.pricePerShare), nil
}

func (v *Vault) Decimals(_ context.Context) (uint8, error) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	vs, _, err := v.world.vault(v.addr)
	if err != nil {
		return 0, err
	}
	return vs.decimals, nil
}

func (v *Vault) UnderlyingToken(_ context.Context) (common.Address, error) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	vs, _, err := v.world.vault(v.addr)
	if err != nil {
		return common.Address{}, err
	}
	return vs.token, nil
}

// Pool is a handle on a simulated exchange pool with unlimited liquidity.
type Pool struct {
	world *World
	addr  common.Address
	as    common.Address
}

// Pool returns a handle on pool addr acting as account as.
func (w *World) Pool(addr, as common.Address) *Pool {
	return &Pool{world: w, addr: addr, as: as}
}

func (p *Pool) Address() common.Address { return p.addr }

func (p *Pool) ExchangeUnderlying(_ context.Context, from, to int, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	w := p.world
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, ok := w.st.pools[p.addr]
	if !ok {
		return nil, fmt.Errorf("exchange: pool %s: %w", p.addr.Hex(), errUnknownContract)
	}
	if from < 0 || to < 0 || from >= len(ps.coins) || to >= len(ps.coins) || from == to {
		return nil, fmt.Errorf("exchange: bad coin indices %d -> %d", from, to)
	}
	out := model.ApplyBps(amountIn, ps.outputBps)
	if out.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("exchange: got %s, want at least %s: %w", out, minAmountOut, model.ErrSlippageExceeded)
	}
	src := w.st.tokens[ps.coins[from]]
	dst := w.st.tokens[ps.coins[to]]
	if bal := src.balanceOf(p.as); bal.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("exchange: %w: have %s, need %s", errInsufficientBalance, bal, amountIn)
	}
	if err := src.spend(p.as, p.addr, amountIn); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	if err := src.transfer(p.as, p.addr, amountIn); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	if held := dst.balanceOf(p.addr); held.Cmp(out) < 0 {
		dst.credit(p.addr, new(big.Int).Sub(out, held))
	}
	if err := dst.transfer(p.addr, p.as, out); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	return out, nil
}

func (w *World) token(addr common.Address) (*tokenState, error) {
	ts, ok := w.st.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", addr.Hex(), errUnknownContract)
	}
	return ts, nil
}

func (w *World) vault(addr common.Address) (*vaultState, *tokenState, error) {
	vs, ok := w.st.vaults[addr]
	if !ok {
		return nil, nil, fmt.Errorf("vault %s: %w", addr.Hex(), errUnknownContract)
	}
	return vs, w.st.tokens[addr], nil
}
