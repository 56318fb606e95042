package strategy

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Manager exposes the lifecycle hooks the allocator drives. Calls are
// serialized; no position size is cached between them.
type Manager struct {
	mu         sync.Mutex
	name       string
	env        Env
	params     Params
	authorized map[common.Address]struct{}

	valuer     *Valuer
	gateway    *Gateway
	accountant *Accountant
	log        zerolog.Logger
}

// NewManager validates the environment and parameters and wires the components.
// authorized lists the accounts allowed to change parameters.
func NewManager(name string, env Env, params Params, authorized []common.Address, log zerolog.Logger) (*Manager, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		name:       name,
		env:        env,
		params:     params,
		authorized: make(map[common.Address]struct{}, len(authorized)),
		log:        log.With().Str("module", "strategy").Str("strategy", name).Logger(),
	}
	for _, a := range authorized {
		m.authorized[a] = struct{}{}
	}
	m.valuer = NewValuer(&m.env)
	m.gateway = NewGateway(&m.env, &m.params, m.valuer, m.log)
	m.accountant = NewAccountant(&m.env, m.valuer, m.gateway, m, m.log)
	return m, nil
}

func (m *Manager) Name() string { return m.name }

func (m *Manager) Address() common.Address { return m.env.Self }

// Params returns a copy of the current parameters.
func (m *Manager) Params() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// SetMinExpectedSwapPercentage sets the minimum conversion output in basis points.
func (m *Manager) SetMinExpectedSwapPercentage(caller common.Address, bps uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller); err != nil {
		return err
	}
	if err := model.ValidateBps("min expected swap", bps); err != nil {
		return err
	}
	m.params.MinExpectedSwapBps = bps
	m.log.Info().Str("caller", caller.Hex()).Uint64("bps", bps).Msg("Min expected swap updated")
	return nil
}

// SetMaxLoss sets the vault withdrawal loss tolerance in basis points.
func (m *Manager) SetMaxLoss(caller common.Address, bps uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller); err != nil {
		return err
	}
	if err := model.ValidateBps("max loss", bps); err != nil {
		return err
	}
	m.params.MaxLossBps = bps
	m.log.Info().Str("caller", caller.Hex()).Uint64("bps", bps).Msg("Max loss updated")
	return nil
}

func (m *Manager) EstimatedTotalAssets(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuer.TotalAssets(ctx)
}

func (m *Manager) BalanceOfWant(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuer.BalanceOfWant(ctx)
}

func (m *Manager) BalanceOfInvestmentToken(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuer.BalanceOfInvestmentToken(ctx)
}

func (m *Manager) ValueOfInvestment(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuer.ValueOfInvestment(ctx)
}

// Position returns a live snapshot of the position.
func (m *Manager) Position(ctx context.Context) (model.PositionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuer.Snapshot(ctx)
}

// PrepareReturn computes profit, loss and debt payment for a report.
func (m *Manager) PrepareReturn(ctx context.Context, debtOutstanding *big.Int) (model.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret model.Return
	err := m.atomically("prepare return", func() error {
		var err error
		ret, err = m.accountant.ComputeReturn(ctx, debtOutstanding)
		return err
	})
	if err != nil {
		return model.ZeroReturn(), err
	}
	m.log.Info().
		Str("profit", ret.Profit.String()).
		Str("loss", ret.Loss.String()).
		Str("debt_payment", ret.DebtPayment.String()).
		Msg("Return prepared")
	return ret, nil
}

// AdjustPosition deposits idle want above debtOutstanding into the vault.
func (m *Manager) AdjustPosition(ctx context.Context, debtOutstanding *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atomically("adjust position", func() error {
		idle, err := m.valuer.BalanceOfWant(ctx)
		if err != nil {
			return err
		}
		if idle.Cmp(debtOutstanding) <= 0 {
			return nil
		}
		excess := new(big.Int).Sub(idle, debtOutstanding)
		m.log.Info().Str("amount", excess.String()).Msg("Depositing idle want")
		return m.gateway.DepositToInvestment(ctx, excess)
	})
}

// LiquidatePosition frees up to amountNeeded of want. Any shortfall is
// returned as loss; freed never exceeds amountNeeded.
func (m *Manager) LiquidatePosition(ctx context.Context, amountNeeded *big.Int) (freed, loss *big.Int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	err = m.atomically("liquidate position", func() error {
		freed, loss, err = m.liquidate(ctx, amountNeeded)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return freed, loss, nil
}

// LiquidateAllPositions frees the full estimated total assets.
func (m *Manager) LiquidateAllPositions(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var freed *big.Int
	err := m.atomically("liquidate all positions", func() error {
		total, err := m.valuer.TotalAssets(ctx)
		if err != nil {
			return err
		}
		freed, _, err = m.liquidate(ctx, total)
		return err
	})
	if err != nil {
		return nil, err
	}
	return freed, nil
}

// PrepareMigration hands the whole share balance to destination. Idle want
// stays with the caller.
func (m *Manager) PrepareMigration(ctx context.Context, destination common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atomically("prepare migration", func() error {
		shares, err := m.valuer.BalanceOfShares(ctx)
		if err != nil {
			return err
		}
		if shares.Sign() == 0 {
			return nil
		}
		if err := m.env.Vault.Transfer(ctx, destination, shares); err != nil {
			return external("transfer shares", err)
		}
		m.log.Info().Str("destination", destination.Hex()).Str("shares", shares.String()).Msg("Shares migrated")
		return nil
	})
}

func (m *Manager) liquidate(ctx context.Context, amountNeeded *big.Int) (*big.Int, *big.Int, error) {
	idle, err := m.valuer.BalanceOfWant(ctx)
	if err != nil {
		return nil, nil, err
	}
	if idle.Cmp(amountNeeded) < 0 {
		if err := m.gateway.RedeemValue(ctx, new(big.Int).Sub(amountNeeded, idle)); err != nil {
			return nil, nil, err
		}
		if idle, err = m.valuer.BalanceOfWant(ctx); err != nil {
			return nil, nil, err
		}
	}
	if idle.Cmp(amountNeeded) >= 0 {
		return new(big.Int).Set(amountNeeded), new(big.Int), nil
	}
	return idle, new(big.Int).Sub(amountNeeded, idle), nil
}

func (m *Manager) authorize(caller common.Address) error {
	if _, ok := m.authorized[caller]; !ok {
		return fmt.Errorf("%w: %s may not change parameters", model.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// atomically runs fn inside a backend checkpoint when one is available.
func (m *Manager) atomically(op string, fn func() error) error {
	cp := m.env.Checkpointer
	if cp == nil {
		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	id := cp.Checkpoint()
	if err := fn(); err != nil {
		if rerr := cp.RevertTo(id); rerr != nil {
			m.log.Error().Err(rerr).Str("op", op).Msg("Failed to revert checkpoint")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	cp.Commit(id)
	return nil
}
