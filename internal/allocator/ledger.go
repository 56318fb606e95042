package allocator

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Treasury moves want between the allocator and its strategies.
type Treasury interface {
	Balance(token, holder common.Address) *big.Int
	Move(token, from, to common.Address, amount *big.Int) error
}

// Ledger is an in-memory Book. The allocator's own want sits at Address.
type Ledger struct {
	mu       sync.Mutex
	address  common.Address
	want     common.Address
	treasury Treasury
	accounts map[common.Address]*model.DebtAccount
}

func NewLedger(address, want common.Address, treasury Treasury) *Ledger {
	return &Ledger{
		address:  address,
		want:     want,
		treasury: treasury,
		accounts: make(map[common.Address]*model.DebtAccount),
	}
}

// Address returns the allocator's account.
func (l *Ledger) Address() common.Address { return l.address }

// AddStrategy opens an account with the given debt limit.
func (l *Ledger) AddStrategy(strategy common.Address, debtLimit *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[strategy]; ok {
		return fmt.Errorf("add strategy: %s already registered", strategy.Hex())
	}
	l.accounts[strategy] = &model.DebtAccount{
		Strategy:  strategy,
		TotalDebt: new(big.Int),
		DebtLimit: new(big.Int).Set(debtLimit),
		TotalGain: new(big.Int),
		TotalLoss: new(big.Int),
	}
	return nil
}

// SetDebtLimit changes how much the strategy may borrow.
func (l *Ledger) SetDebtLimit(strategy common.Address, limit *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return err
	}
	acct.DebtLimit = new(big.Int).Set(limit)
	return nil
}

// Account returns a copy of the strategy's account.
func (l *Ledger) Account(strategy common.Address) (model.DebtAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return model.DebtAccount{}, err
	}
	return copyAccount(acct), nil
}

func (l *Ledger) TrackedDebt(_ context.Context, strategy common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acct.TotalDebt), nil
}

func (l *Ledger) DebtOutstanding(_ context.Context, strategy common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return nil, err
	}
	return model.SubFloor(acct.TotalDebt, acct.DebtLimit), nil
}

// CreditAvailable is how much more the strategy may borrow, bounded by the
// allocator's idle want.
func (l *Ledger) CreditAvailable(strategy common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return nil, err
	}
	return l.credit(acct), nil
}

func (l *Ledger) Report(_ context.Context, strategy common.Address, ret model.Return) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return nil, err
	}
	if ret.Profit.Sign() > 0 && ret.Loss.Sign() > 0 {
		return nil, fmt.Errorf("report: %w: profit and loss both set", model.ErrInvalidParameter)
	}
	if ret.Loss.Cmp(acct.TotalDebt) > 0 {
		return nil, fmt.Errorf("report: %w: loss %s exceeds debt %s", model.ErrInvalidParameter, ret.Loss, acct.TotalDebt)
	}

	next := copyAccount(acct)
	next.TotalLoss.Add(next.TotalLoss, ret.Loss)
	next.TotalDebt.Sub(next.TotalDebt, ret.Loss)
	next.TotalGain.Add(next.TotalGain, ret.Profit)

	credit := l.credit(&next)
	payment := model.Min(ret.DebtPayment, model.SubFloor(next.TotalDebt, next.DebtLimit))
	next.TotalDebt.Sub(next.TotalDebt, payment)
	next.TotalDebt.Add(next.TotalDebt, credit)

	owed := new(big.Int).Add(ret.Profit, payment)
	switch owed.Cmp(credit) {
	case 1:
		err = l.treasury.Move(l.want, strategy, l.address, new(big.Int).Sub(owed, credit))
	case -1:
		err = l.treasury.Move(l.want, l.address, strategy, new(big.Int).Sub(credit, owed))
	}
	if err != nil {
		return nil, fmt.Errorf("report: settle: %w", err)
	}
	*acct = next
	return model.SubFloor(acct.TotalDebt, acct.DebtLimit), nil
}

func (l *Ledger) Repay(_ context.Context, strategy common.Address, freed, loss *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(strategy)
	if err != nil {
		return err
	}
	if freed.Sign() > 0 {
		if err := l.treasury.Move(l.want, strategy, l.address, freed); err != nil {
			return fmt.Errorf("repay: %w", err)
		}
	}
	acct.TotalLoss.Add(acct.TotalLoss, loss)
	acct.TotalDebt = model.SubFloor(acct.TotalDebt, new(big.Int).Add(freed, loss))
	return nil
}

func (l *Ledger) Revoke(_ context.Context, strategy common.Address) error {
	return l.SetDebtLimit(strategy, new(big.Int))
}

func (l *Ledger) Migrate(_ context.Context, from, to common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, err := l.account(from)
	if err != nil {
		return err
	}
	if _, ok := l.accounts[to]; ok {
		return fmt.Errorf("migrate: %s already registered", to.Hex())
	}
	if idle := l.treasury.Balance(l.want, from); idle.Sign() > 0 {
		if err := l.treasury.Move(l.want, from, to, idle); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	delete(l.accounts, from)
	acct.Strategy = to
	l.accounts[to] = acct
	return nil
}

func (l *Ledger) account(strategy common.Address) (*model.DebtAccount, error) {
	acct, ok := l.accounts[strategy]
	if !ok {
		return nil, fmt.Errorf("strategy %s is not registered", strategy.Hex())
	}
	return acct, nil
}

func (l *Ledger) credit(acct *model.DebtAccount) *big.Int {
	return model.Min(model.SubFloor(acct.DebtLimit, acct.TotalDebt), l.treasury.Balance(l.want, l.address))
}

func copyAccount(a *model.DebtAccount) model.DebtAccount {
	return model.DebtAccount{
		Strategy:  a.Strategy,
		TotalDebt: new(big.Int).Set(a.TotalDebt),
		DebtLimit: new(big.Int).Set(a.DebtLimit),
		TotalGain: new(big.Int).Set(a.TotalGain),
		TotalLoss: new(big.Int).Set(a.TotalLoss),
	}
}
