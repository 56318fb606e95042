// Package sim is an in-memory chain used for dry runs and tests. Tokens,
// the share vault and the exchange pool live in one World so a checkpoint
// captures all of them at once.
package sim

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errInsufficientBalance   = errors.New("insufficient balance")
	errInsufficientAllowance = errors.New("insufficient allowance")
	errUnknownContract       = errors.New("unknown contract")
)

type tokenState struct {
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

type vaultState struct {
	token         common.Address
	decimals      uint8
	pricePerShare *big.Int
	withdrawLoss  uint64
}

type poolState struct {
	coins     []common.Address
	outputBps uint64
}

type state struct {
	tokens map[common.Address]*tokenState
	vaults map[common.Address]*vaultState
	pools  map[common.Address]*poolState
}

// World holds every simulated contract.
type World struct {
	mu        sync.Mutex
	st        state
	snapshots []state
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{st: state{
		tokens: make(map[common.Address]*tokenState),
		vaults: make(map[common.Address]*vaultState),
		pools:  make(map[common.Address]*poolState),
	}}
}

// DeployToken registers an ERC20-style token at addr.
func (w *World) DeployToken(addr common.Address, decimals uint8) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.tokens[addr] = newTokenState(decimals)
}

// DeployVault registers a share vault at addr over token. Shares use the
// same decimals as the token and start at a price of one token per share.
func (w *World) DeployVault(addr, token common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts, ok := w.st.tokens[token]
	if !ok {
		return fmt.Errorf("deploy vault: token %s: %w", token.Hex(), errUnknownContract)
	}
	w.st.tokens[addr] = newTokenState(ts.decimals)
	w.st.vaults[addr] = &vaultState{
		token:         token,
		decimals:      ts.decimals,
		pricePerShare: pow10(ts.decimals),
	}
	return nil
}

// DeployPool registers an exchange pool over coins, indexed in order.
// The pool pays out amountIn * outputBps / 10000 of the target coin.
func (w *World) DeployPool(addr common.Address, coins []common.Address, outputBps uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range coins {
		if _, ok := w.st.tokens[c]; !ok {
			return fmt.Errorf("deploy pool: coin %s: %w", c.Hex(), errUnknownContract)
		}
	}
	w.st.pools[addr] = &poolState{coins: append([]common.Address(nil), coins...), outputBps: outputBps}
	return nil
}

// Mint credits amount of token to holder.
func (w *World) Mint(token, holder common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts, ok := w.st.tokens[token]
	if !ok {
		return fmt.Errorf("mint: %w", errUnknownContract)
	}
	ts.credit(holder, amount)
	return nil
}

// Balance returns holder's balance of token, zero for unknown tokens.
func (w *World) Balance(token, holder common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts, ok := w.st.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return ts.balanceOf(holder)
}

// Move transfers amount of token between two accounts without allowance checks.
func (w *World) Move(token, from, to common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts, ok := w.st.tokens[token]
	if !ok {
		return fmt.Errorf("move: %w", errUnknownContract)
	}
	return ts.transfer(from, to, amount)
}

// SetPricePerShare changes the vault's share price, in token units per 10^decimals shares.
func (w *World) SetPricePerShare(vault common.Address, pps *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	vs, ok := w.st.vaults[vault]
	if !ok {
		return fmt.Errorf("set price per share: %w", errUnknownContract)
	}
	vs.pricePerShare = new(big.Int).Set(pps)
	return nil
}

// SetWithdrawLoss makes every vault withdrawal realize bps less than nominal value.
func (w *World) SetWithdrawLoss(vault common.Address, bps uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	vs, ok := w.st.vaults[vault]
	if !ok {
		return fmt.Errorf("set withdraw loss: %w", errUnknownContract)
	}
	vs.withdrawLoss = bps
	return nil
}

// SetPoolOutput changes the pool's payout ratio in basis points.
func (w *World) SetPoolOutput(pool common.Address, outputBps uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, ok := w.st.pools[pool]
	if !ok {
		return fmt.Errorf("set pool output: %w", errUnknownContract)
	}
	ps.outputBps = outputBps
	return nil
}

// Checkpoint saves the current state and returns its id.
func (w *World) Checkpoint() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots = append(w.snapshots, w.st.clone())
	return len(w.snapshots) - 1
}

// RevertTo restores the state saved by Checkpoint(id).
func (w *World) RevertTo(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id < 0 || id >= len(w.snapshots) {
		return fmt.Errorf("revert: unknown checkpoint %d", id)
	}
	w.st = w.snapshots[id]
	w.snapshots = w.snapshots[:id]
	return nil
}

// Commit drops checkpoint id and any taken after it.
func (w *World) Commit(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id >= 0 && id < len(w.snapshots) {
		w.snapshots = w.snapshots[:id]
	}
}

func newTokenState(decimals uint8) *tokenState {
	return &tokenState{
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *tokenState) balanceOf(holder common.Address) *big.Int {
	if b, ok := t.balances[holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *tokenState) credit(holder common.Address, amount *big.Int) {
	t.balances[holder] = new(big.Int).Add(t.balanceOf(holder), amount)
}

func (t *tokenState) debit(holder common.Address, amount *big.Int) error {
	bal := t.balanceOf(holder)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", errInsufficientBalance, bal, amount)
	}
	t.balances[holder] = bal.Sub(bal, amount)
	return nil
}

func (t *tokenState) transfer(from, to common.Address, amount *big.Int) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

func (t *tokenState) allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (t *tokenState) approve(owner, spender common.Address, amount *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

// spend consumes allowance granted by owner to spender.
func (t *tokenState) spend(owner, spender common.Address, amount *big.Int) error {
	a := t.allowance(owner, spender)
	if a.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", errInsufficientAllowance, a, amount)
	}
	t.approve(owner, spender, a.Sub(a, amount))
	return nil
}

func (s state) clone() state {
	out := state{
		tokens: make(map[common.Address]*tokenState, len(s.tokens)),
		vaults: make(map[common.Address]*vaultState, len(s.vaults)),
		pools:  make(map[common.Address]*poolState, len(s.pools)),
	}
	for addr, t := range s.tokens {
		c := newTokenState(t.decimals)
		for h, b := range t.balances {
			c.balances[h] = new(big.Int).Set(b)
		}
		for o, m := range t.allowances {
			c.allowances[o] = make(map[common.Address]*big.Int, len(m))
			for sp, a := range m {
				c.allowances[o][sp] = new(big.Int).Set(a)
			}
		}
		out.tokens[addr] = c
	}
	for addr, v := range s.vaults {
		cv := *v
		cv.pricePerShare = new(big.Int).Set(v.pricePerShare)
		out.vaults[addr] = &cv
	}
	for addr, p := range s.pools {
		cp := *p
		cp.coins = append([]common.Address(nil), p.coins...)
		out.pools[addr] = &cp
	}
	return out
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
