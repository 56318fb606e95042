package notifier

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"YieldRouter/internal/model"

	"github.com/stretchr/testify/assert"
)

func snapshot() model.PositionSnapshot {
	return model.PositionSnapshot{
		Idle:              big.NewInt(200_000_000),
		InvestmentIdle:    new(big.Int),
		Shares:            big.NewInt(800_000_000),
		PricePerShare:     big.NewInt(1_250_000),
		ValueOfInvestment: big.NewInt(1_000_000_000),
		TotalAssets:       big.NewInt(1_200_000_000),
	}
}

func TestFormatHarvestReport(t *testing.T) {
	rep := &model.HarvestReport{
		Kind:     model.KindHarvest,
		Strategy: "StrategyCurveVault",
		Return: model.Return{
			Profit:      big.NewInt(250_000_000),
			Loss:        new(big.Int),
			DebtPayment: big.NewInt(100_500_000),
		},
		DebtBefore:      big.NewInt(1_000_000_000),
		DebtAfter:       big.NewInt(899_500_000),
		DebtOutstanding: new(big.Int),
		Position:        snapshot(),
		At:              time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	msg := FormatHarvestReport(rep, 6)
	assert.Contains(t, msg, "<b>Harvest</b> | StrategyCurveVault | 2024-03-01 12:00")
	assert.Contains(t, msg, "Profit: +250")
	assert.Contains(t, msg, "Debt repaid: 100.5")
	assert.Contains(t, msg, "Debt: 1000 → 899.5")
	assert.Contains(t, msg, "Vault shares: 800 @ 1.25")
	assert.Contains(t, msg, "Total assets: <b>1200</b>")
	assert.NotContains(t, msg, "Loss")
	assert.NotContains(t, msg, "Outstanding")
	assert.NotContains(t, msg, "Idle investment asset")
}

func TestFormatHarvestReport_Loss(t *testing.T) {
	rep := &model.HarvestReport{
		Kind:            model.KindWithdraw,
		Strategy:        "s",
		Return:          model.Return{Profit: new(big.Int), Loss: big.NewInt(1_500_000), DebtPayment: new(big.Int)},
		DebtBefore:      big.NewInt(0),
		DebtAfter:       big.NewInt(0),
		DebtOutstanding: big.NewInt(3_000_000),
		Position:        snapshot(),
	}
	msg := FormatHarvestReport(rep, 6)
	assert.Contains(t, msg, "<b>Withdraw</b>")
	assert.Contains(t, msg, "Loss: -1.5")
	assert.Contains(t, msg, "Outstanding: 3")
}

func TestFormatStatus(t *testing.T) {
	params := model.StrategyParams{MinExpectedSwapBps: 9950, MaxLossBps: 30}

	msg := FormatStatus("StrategyCurveVault", snapshot(), big.NewInt(1_000_000_000), params, 6)
	assert.Contains(t, msg, "Tracked debt: 1000")
	assert.Contains(t, msg, "Unrealized: +200")
	assert.Contains(t, msg, "Min swap output: 9950 bps (99.5%)")
	assert.Contains(t, msg, "Max vault loss: 30 bps (0.3%)")

	msg = FormatStatus("StrategyCurveVault", snapshot(), big.NewInt(1_300_000_000), params, 6)
	assert.Contains(t, msg, "Unrealized: -100")
}

func TestFormatFailure(t *testing.T) {
	msg := FormatFailure("s", model.KindTend, errors.New("slippage exceeded"))
	assert.Contains(t, msg, "TEND failed")
	assert.Contains(t, msg, "slippage exceeded")
}
