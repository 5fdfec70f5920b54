package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// DefaultRecentRuns bounds RecentRuns when no limit is given.
const DefaultRecentRuns = 20

const statusRunning = "running"

// RunSummary is the read model of one run folded from its events.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Status      string        `json:"status"`
	Date        string        `json:"date,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	NeonVersion string        `json:"neon_version,omitempty"`
	Archive     string        `json:"archive,omitempty"`
	FailedUnits []string      `json:"failed_units,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Summarize folds a run's events. A run without a RunCompleted event is
// reported as running; a crashed run stays that way.
func Summarize(runID string, events []Event) RunSummary {
	s := RunSummary{RunID: runID, Status: statusRunning}
	for i, e := range events {
		if i == 0 {
			s.StartedAt = e.Timestamp
		}
		switch e.Type {
		case EventRunStarted:
			var p RunStarted
			if e.Decode(&p) == nil {
				if !p.Started.IsZero() {
					s.StartedAt = p.Started
				}
				s.NeonVersion = p.NeonVersion
			}
		case EventUnitCompleted:
			var p UnitCompleted
			if e.Decode(&p) == nil && isFailure(p.Result) {
				s.FailedUnits = append(s.FailedUnits, p.Stage+"/"+p.Name)
			}
		case EventRunCompleted:
			var p RunCompleted
			if e.Decode(&p) == nil {
				s.Status = p.Outcome
				s.Date = p.Date
				s.Archive = p.Archive
				s.Error = p.Error
				s.Duration = time.Duration(p.DurationMS) * time.Millisecond
			}
			completed := e.Timestamp
			s.CompletedAt = &completed
		}
	}
	return s
}

func isFailure(result string) bool {
	r := pipeline.Result(result)
	return r == pipeline.ResultFailed || r == pipeline.ResultCanceled
}

// RunsBetween summarizes every run with an event in [start, end], newest
// first. Each summary folds the run's full event stream, including events
// outside the window. A non-positive limit returns all of them.
func RunsBetween(ctx context.Context, store Store, start, end time.Time, limit int) ([]RunSummary, error) {
	events, err := store.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range events {
		if !seen[e.RunID] {
			seen[e.RunID] = true
			ids = append(ids, e.RunID)
		}
	}
	summaries := make([]RunSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(summaries) == limit {
			break
		}
		all, err := store.GetByRunID(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summarize(ids[i], all))
	}
	return summaries, nil
}
