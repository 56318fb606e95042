package recorder

import "YieldRouter/internal/model"

// ParamEvent records a parameter change made through a setter.
type ParamEvent struct {
	Strategy string
	Name     string // "min_expected_swap_bps" or "max_loss_bps"
	OldBps   uint64
	NewBps   uint64
	Caller   string
}

// FailureEvent records a lifecycle operation that aborted.
type FailureEvent struct {
	Strategy string
	Kind     model.HarvestKind
	Error    string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordHarvest(rep *model.HarvestReport) error
	RecordParamChange(evt *ParamEvent) error
	RecordFailure(evt *FailureEvent) error
	Close() error
}
