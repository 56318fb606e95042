package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Return is the outcome of one accounting pass. Profit and Loss are never both nonzero.
type Return struct {
	Profit      *big.Int
	Loss        *big.Int
	DebtPayment *big.Int
}

// ZeroReturn returns a Return with all fields set to zero.
func ZeroReturn() Return {
	return Return{Profit: new(big.Int), Loss: new(big.Int), DebtPayment: new(big.Int)}
}

// PositionSnapshot is a point-in-time view of the position, all values in want units
// except Shares.
type PositionSnapshot struct {
	Idle              *big.Int
	InvestmentIdle    *big.Int
	Shares            *big.Int
	PricePerShare     *big.Int
	ValueOfInvestment *big.Int
	TotalAssets       *big.Int
}

// DebtAccount is the allocator's book for one strategy.
type DebtAccount struct {
	Strategy  common.Address
	TotalDebt *big.Int
	DebtLimit *big.Int
	TotalGain *big.Int
	TotalLoss *big.Int
}

// HarvestKind names the allocator action that produced a report.
type HarvestKind string

const (
	KindHarvest  HarvestKind = "HARVEST"
	KindTend     HarvestKind = "TEND"
	KindWithdraw HarvestKind = "WITHDRAW"
	KindWindDown HarvestKind = "WIND_DOWN"
	KindMigrate  HarvestKind = "MIGRATE"
)

// HarvestReport summarizes one allocator-driven cycle.
type HarvestReport struct {
	Kind            HarvestKind
	Strategy        string
	Return          Return
	DebtBefore      *big.Int
	DebtAfter       *big.Int
	DebtOutstanding *big.Int
	Position        PositionSnapshot
	At              time.Time
}

// StrategyParams are the tunable settings persisted between restarts.
type StrategyParams struct {
	MinExpectedSwapBps uint64    `json:"min_expected_swap_bps"`
	MaxLossBps         uint64    `json:"max_loss_bps"`
	UpdatedAt          time.Time `json:"updated_at"`
}
