package strategy

import (
	"errors"
	"fmt"

	"YieldRouter/internal/chain"
	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Env binds the engine to its account and the contracts it uses.
type Env struct {
	Self       common.Address
	Want       chain.Token
	Investment chain.Token
	Vault      chain.InvestmentVault
	Pool       chain.ExchangePool
	Debt       chain.DebtSource

	// Checkpointer is optional. When set, failed lifecycle operations roll back.
	// The EVM backend sets none: transactions mined before a failing step
	// stay on chain.
	Checkpointer chain.Checkpointer
}

func (e Env) validate() error {
	switch {
	case e.Self == (common.Address{}):
		return errors.New("env: self address is required")
	case e.Want == nil, e.Investment == nil:
		return errors.New("env: want and investment tokens are required")
	case e.Vault == nil:
		return errors.New("env: investment vault is required")
	case e.Pool == nil:
		return errors.New("env: exchange pool is required")
	case e.Debt == nil:
		return errors.New("env: debt source is required")
	}
	return nil
}

// Params bound conversions and vault withdrawals.
type Params struct {
	MinExpectedSwapBps uint64
	MaxLossBps         uint64
	// Pool coin indices of the want and investment assets.
	WantIndex       int
	InvestmentIndex int
}

func (p Params) validate() error {
	if err := model.ValidateBps("min expected swap", p.MinExpectedSwapBps); err != nil {
		return err
	}
	if err := model.ValidateBps("max loss", p.MaxLossBps); err != nil {
		return err
	}
	if p.WantIndex == p.InvestmentIndex {
		return fmt.Errorf("%w: want and investment share pool index %d", model.ErrInvalidParameter, p.WantIndex)
	}
	return nil
}

// external tags a contract failure as ErrExternalCallFailed unless it already
// carries one of the engine's error kinds.
func external(op string, err error) error {
	if errors.Is(err, model.ErrSlippageExceeded) || errors.Is(err, model.ErrExternalCallFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrExternalCallFailed, err)
}
