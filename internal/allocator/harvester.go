package allocator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Harvester drives one strategy through its lifecycle against a Book.
type Harvester struct {
	strategy Strategy
	book     Book
	log      zerolog.Logger
}

func NewHarvester(strategy Strategy, book Book, log zerolog.Logger) *Harvester {
	return &Harvester{
		strategy: strategy,
		book:     book,
		log:      log.With().Str("module", "harvester").Str("strategy", strategy.Name()).Logger(),
	}
}

// Strategy returns the strategy this harvester drives.
func (h *Harvester) Strategy() Strategy { return h.strategy }

// Harvest asks the strategy for its return, books it and redeploys whatever
// the strategy does not need to hold back for outstanding debt.
func (h *Harvester) Harvest(ctx context.Context) (*model.HarvestReport, error) {
	addr := h.strategy.Address()
	debtBefore, err := h.book.TrackedDebt(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	debtOutstanding, err := h.book.DebtOutstanding(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	ret, err := h.strategy.PrepareReturn(ctx, debtOutstanding)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	debtOutstanding, err = h.book.Report(ctx, addr, ret)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	if err := h.strategy.AdjustPosition(ctx, debtOutstanding); err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	report, err := h.report(ctx, model.KindHarvest, ret, debtBefore, debtOutstanding)
	if err != nil {
		return nil, err
	}
	h.log.Info().
		Str("profit", ret.Profit.String()).
		Str("loss", ret.Loss.String()).
		Str("debt_payment", ret.DebtPayment.String()).
		Str("debt_outstanding", debtOutstanding.String()).
		Msg("Harvested")
	return report, nil
}

// Tend redeploys idle want without reporting.
func (h *Harvester) Tend(ctx context.Context) (*model.HarvestReport, error) {
	addr := h.strategy.Address()
	debt, err := h.book.TrackedDebt(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("tend: %w", err)
	}
	debtOutstanding, err := h.book.DebtOutstanding(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("tend: %w", err)
	}
	if err := h.strategy.AdjustPosition(ctx, debtOutstanding); err != nil {
		return nil, fmt.Errorf("tend: %w", err)
	}
	return h.report(ctx, model.KindTend, model.ZeroReturn(), debt, debtOutstanding)
}

// Withdraw pulls amount of want back from the strategy. A shortfall is booked as loss.
func (h *Harvester) Withdraw(ctx context.Context, amount *big.Int) (*model.HarvestReport, error) {
	addr := h.strategy.Address()
	debtBefore, err := h.book.TrackedDebt(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	freed, loss, err := h.strategy.LiquidatePosition(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	if err := h.book.Repay(ctx, addr, freed, loss); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	debtOutstanding, err := h.book.DebtOutstanding(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	ret := model.Return{Profit: new(big.Int), Loss: loss, DebtPayment: freed}
	h.log.Info().Str("requested", amount.String()).Str("freed", freed.String()).Str("loss", loss.String()).Msg("Withdrawn")
	return h.report(ctx, model.KindWithdraw, ret, debtBefore, debtOutstanding)
}

// WindDown revokes the strategy and returns everything it holds.
func (h *Harvester) WindDown(ctx context.Context) (*model.HarvestReport, error) {
	addr := h.strategy.Address()
	if err := h.book.Revoke(ctx, addr); err != nil {
		return nil, fmt.Errorf("wind down: %w", err)
	}
	debtBefore, err := h.book.DebtOutstanding(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("wind down: %w", err)
	}
	freed, err := h.strategy.LiquidateAllPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("wind down: %w", err)
	}

	ret := model.ZeroReturn()
	switch freed.Cmp(debtBefore) {
	case -1:
		ret.Loss = new(big.Int).Sub(debtBefore, freed)
	case 1:
		ret.Profit = new(big.Int).Sub(freed, debtBefore)
	}
	ret.DebtPayment = new(big.Int).Sub(debtBefore, ret.Loss)

	debtOutstanding, err := h.book.Report(ctx, addr, ret)
	if err != nil {
		return nil, fmt.Errorf("wind down: %w", err)
	}
	h.log.Warn().Str("freed", freed.String()).Str("loss", ret.Loss.String()).Msg("Strategy wound down")
	return h.report(ctx, model.KindWindDown, ret, debtBefore, debtOutstanding)
}

// Migrate hands the strategy's shares, idle want and debt to successor.
func (h *Harvester) Migrate(ctx context.Context, successor common.Address) (*model.HarvestReport, error) {
	addr := h.strategy.Address()
	debt, err := h.book.TrackedDebt(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := h.strategy.PrepareMigration(ctx, successor); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := h.book.Migrate(ctx, addr, successor); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	h.log.Warn().Str("successor", successor.Hex()).Msg("Strategy migrated")
	return h.report(ctx, model.KindMigrate, model.ZeroReturn(), debt, new(big.Int))
}

func (h *Harvester) report(ctx context.Context, kind model.HarvestKind, ret model.Return, debtBefore, debtOutstanding *big.Int) (*model.HarvestReport, error) {
	pos, err := h.strategy.Position(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: read position: %w", kind, err)
	}
	debtAfter := new(big.Int)
	if kind != model.KindMigrate {
		if debtAfter, err = h.book.TrackedDebt(ctx, h.strategy.Address()); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
	}
	return &model.HarvestReport{
		Kind:            kind,
		Strategy:        h.strategy.Name(),
		Return:          ret,
		DebtBefore:      debtBefore,
		DebtAfter:       debtAfter,
		DebtOutstanding: debtOutstanding,
		Position:        pos,
		At:              time.Now(),
	}, nil
}
