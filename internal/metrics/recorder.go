package metrics

import "time"

// ResultLabel enumerates stage and unit result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// RunOutcomeLabel is the final outcome of a run.
type RunOutcomeLabel string

const (
	RunOutcomeSuccess  RunOutcomeLabel = "success"
	RunOutcomeFailed   RunOutcomeLabel = "failed"
	RunOutcomeCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for runs, stages and the units inside them.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveUnitDuration(stage, unit string, d time.Duration, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
	SetLastSuccess(t time.Time)
	IncRetry(op string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)                     {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                             {}
func (NoopRecorder) ObserveUnitDuration(string, string, time.Duration, ResultLabel) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                               {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)                                  {}
func (NoopRecorder) SetLastSuccess(time.Time)                                       {}
func (NoopRecorder) IncRetry(string)                                                {}
