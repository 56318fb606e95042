package recorder

import "YieldRouter/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordHarvest(_ *model.HarvestReport) error { return nil }
func (n *NoopRecorder) RecordParamChange(_ *ParamEvent) error      { return nil }
func (n *NoopRecorder) RecordFailure(_ *FailureEvent) error        { return nil }
func (n *NoopRecorder) Close() error                               { return nil }
