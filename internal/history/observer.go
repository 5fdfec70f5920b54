package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

const appendTimeout = 5 * time.Second

// Observer records the run lifecycle in a Store. Write failures are logged
// and never fail the run.
type Observer struct {
	store Store
	runID string
}

// NewObserver returns a pipeline observer appending to store.
func NewObserver(store Store) *Observer { return &Observer{store: store} }

var _ pipeline.Observer = (*Observer)(nil)

func (o *Observer) OnRunStart(r *pipeline.Report) {
	o.runID = r.RunID
	o.append(EventRunStarted, RunStarted{Started: r.Start.UTC(), NeonVersion: r.NeonVersion}, nil)
}

func (o *Observer) OnStageStart(pipeline.StageName) {}

func (o *Observer) OnUnitComplete(out pipeline.StageOutcome) {
	p := UnitCompleted{
		Stage:      string(out.Stage),
		Name:       out.Name,
		Result:     string(out.Result),
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		p.Error = out.Err.Error()
	}
	o.append(EventUnitCompleted, p, nil)
}

func (o *Observer) OnStageComplete(stage pipeline.StageName, d time.Duration, result pipeline.Result) {
	o.append(EventStageCompleted, StageCompleted{Stage: string(stage), Result: string(result), DurationMS: d.Milliseconds()}, nil)
}

func (o *Observer) OnRunComplete(r *pipeline.Report) {
	p := RunCompleted{
		Date:       r.Date,
		BasePath:   r.BasePath,
		State:      string(r.State),
		Outcome:    string(r.Outcome),
		DurationMS: r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	if r.Artifact != nil {
		p.Archive = r.Artifact.Archive
	}
	o.append(EventRunCompleted, p, map[string]string{"date": r.Date})
}

func (o *Observer) append(eventType string, payload any, metadata map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to encode history event", slog.String("event_type", eventType), logfields.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := o.store.Append(ctx, o.runID, eventType, data, metadata); err != nil {
		slog.Warn("Failed to record history event",
			logfields.RunID(o.runID),
			slog.String("event_type", eventType),
			logfields.Error(err))
	}
}
