package notifier

import (
	"fmt"
	"math/big"
	"strings"

	"YieldRouter/internal/model"
)

var kindTitles = map[model.HarvestKind]string{
	model.KindHarvest:  "🌾 <b>Harvest</b>",
	model.KindTend:     "🪴 <b>Tend</b>",
	model.KindWithdraw: "💸 <b>Withdraw</b>",
	model.KindWindDown: "🛑 <b>Wind-down</b>",
	model.KindMigrate:  "🚚 <b>Migration</b>",
}

// FormatHarvestReport formats one lifecycle report. Amounts are in want
// units with the given decimals.
func FormatHarvestReport(rep *model.HarvestReport, decimals uint8) string {
	var b strings.Builder
	title, ok := kindTitles[rep.Kind]
	if !ok {
		title = "<b>" + string(rep.Kind) + "</b>"
	}
	b.WriteString(fmt.Sprintf("%s | %s | %s\n\n", title, rep.Strategy, rep.At.Format("2006-01-02 15:04")))

	r := rep.Return
	if r.Profit.Sign() > 0 {
		b.WriteString(fmt.Sprintf("Profit: +%s\n", model.FormatUnits(r.Profit, decimals)))
	}
	if r.Loss.Sign() > 0 {
		b.WriteString(fmt.Sprintf("⚠️ Loss: -%s\n", model.FormatUnits(r.Loss, decimals)))
	}
	if r.DebtPayment.Sign() > 0 {
		b.WriteString(fmt.Sprintf("Debt repaid: %s\n", model.FormatUnits(r.DebtPayment, decimals)))
	}
	b.WriteString(fmt.Sprintf("Debt: %s → %s\n", model.FormatUnits(rep.DebtBefore, decimals), model.FormatUnits(rep.DebtAfter, decimals)))
	if rep.DebtOutstanding != nil && rep.DebtOutstanding.Sign() > 0 {
		b.WriteString(fmt.Sprintf("Outstanding: %s\n", model.FormatUnits(rep.DebtOutstanding, decimals)))
	}
	b.WriteString("\n")
	b.WriteString(formatPosition(rep.Position, decimals))
	return b.String()
}

// FormatStatus formats the live position, the tracked debt and the current parameters.
func FormatStatus(name string, pos model.PositionSnapshot, debt *big.Int, params model.StrategyParams, decimals uint8) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>%s</b>\n\n", name))
	b.WriteString(formatPosition(pos, decimals))
	b.WriteString(fmt.Sprintf("Tracked debt: %s\n", model.FormatUnits(debt, decimals)))
	if pos.TotalAssets != nil && debt != nil {
		pnl := new(big.Int).Sub(pos.TotalAssets, debt)
		sign := "+"
		if pnl.Sign() < 0 {
			sign = "-"
			pnl.Neg(pnl)
		}
		b.WriteString(fmt.Sprintf("Unrealized: %s%s\n", sign, model.FormatUnits(pnl, decimals)))
	}
	b.WriteString(fmt.Sprintf("\nMin swap output: %s\n", formatBps(params.MinExpectedSwapBps)))
	b.WriteString(fmt.Sprintf("Max vault loss: %s\n", formatBps(params.MaxLossBps)))
	return b.String()
}

// FormatFailure formats an aborted operation.
func FormatFailure(strategy string, kind model.HarvestKind, err error) string {
	return fmt.Sprintf("❌ <b>%s failed</b> | %s\n\n%v", kind, strategy, err)
}

func formatPosition(pos model.PositionSnapshot, decimals uint8) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Idle want: %s\n", model.FormatUnits(pos.Idle, decimals)))
	if pos.InvestmentIdle != nil && pos.InvestmentIdle.Sign() > 0 {
		b.WriteString(fmt.Sprintf("Idle investment asset: %s\n", model.FormatUnits(pos.InvestmentIdle, decimals)))
	}
	b.WriteString(fmt.Sprintf("Vault shares: %s @ %s\n", model.FormatUnits(pos.Shares, decimals), model.FormatUnits(pos.PricePerShare, decimals)))
	b.WriteString(fmt.Sprintf("Invested value: %s\n", model.FormatUnits(pos.ValueOfInvestment, decimals)))
	b.WriteString(fmt.Sprintf("Total assets: <b>%s</b>\n", model.FormatUnits(pos.TotalAssets, decimals)))
	return b.String()
}

func formatBps(bps uint64) string {
	return fmt.Sprintf("%d bps (%s%%)", bps, model.FormatUnits(new(big.Int).SetUint64(bps), 2))
}
