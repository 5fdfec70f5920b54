package pipeline

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/metrics"
)

// Observer receives callbacks around stage execution and the run lifecycle.
type Observer interface {
	OnRunStart(report *Report)
	OnStageStart(stage StageName)
	OnUnitComplete(outcome StageOutcome)
	OnStageComplete(stage StageName, duration time.Duration, result Result)
	OnRunComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(*Report)                               {}
func (NoopObserver) OnStageStart(StageName)                           {}
func (NoopObserver) OnUnitComplete(StageOutcome)                      {}
func (NoopObserver) OnStageComplete(StageName, time.Duration, Result) {}
func (NoopObserver) OnRunComplete(*Report)                            {}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (RecorderObserver) OnRunStart(*Report)     {}
func (RecorderObserver) OnStageStart(StageName) {}

func (r RecorderObserver) OnUnitComplete(o StageOutcome) {
	r.Recorder.ObserveUnitDuration(string(o.Stage), o.Name, o.Duration, metrics.ResultLabel(o.Result))
}

func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, result Result) {
	r.Recorder.ObserveStageDuration(string(stage), d)
	r.Recorder.IncStageResult(string(stage), metrics.ResultLabel(result))
}

func (r RecorderObserver) OnRunComplete(report *Report) {
	r.Recorder.ObserveRunDuration(report.Duration())
	r.Recorder.IncRunOutcome(metrics.RunOutcomeLabel(report.Outcome))
	if report.Succeeded() {
		r.Recorder.SetLastSuccess(report.End)
	}
}

// LogObserver writes the run lifecycle to a slog logger.
type LogObserver struct{ Logger *slog.Logger }

func (l LogObserver) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogObserver) OnRunStart(r *Report) {
	l.logger().Info("Nightly run started", logfields.RunID(r.RunID))
}

func (l LogObserver) OnStageStart(stage StageName) {
	l.logger().Debug("Stage started", logfields.Stage(string(stage)))
}

func (l LogObserver) OnUnitComplete(o StageOutcome) {
	attrs := []any{
		logfields.Stage(string(o.Stage)),
		logfields.Component(o.Name),
		logfields.Outcome(string(o.Result)),
		logfields.DurationMS(float64(o.Duration.Milliseconds())),
	}
	switch o.Result {
	case ResultFailed, ResultCanceled:
		l.logger().Error("Unit failed", append(attrs, logfields.Error(o.Err))...)
	case ResultSkipped:
		l.logger().Warn("Unit skipped", attrs...)
	default:
		l.logger().Info("Unit completed", attrs...)
	}
}

func (l LogObserver) OnStageComplete(stage StageName, d time.Duration, result Result) {
	l.logger().Debug("Stage completed",
		logfields.Stage(string(stage)),
		logfields.Outcome(string(result)),
		logfields.DurationMS(float64(d.Milliseconds())))
}

func (l LogObserver) OnRunComplete(r *Report) {
	attrs := []any{
		logfields.RunID(r.RunID),
		logfields.Date(r.Date),
		logfields.State(string(r.State)),
		logfields.Outcome(string(r.Outcome)),
		logfields.DurationMS(float64(r.Duration().Milliseconds())),
	}
	if r.Succeeded() {
		l.logger().Info("Nightly run completed", attrs...)
		return
	}
	l.logger().Error("Nightly run failed", append(attrs, logfields.Error(r.Err))...)
}
