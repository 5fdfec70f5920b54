package pipeline

import (
	"time"

	"git.home.luguber.info/inful/neon/internal/version"
)

// StageOutcome records the result of one unit (or a unit-less stage).
type StageOutcome struct {
	Stage    StageName
	Name     string
	Result   Result
	Err      error
	Duration time.Duration
}

// Report captures the per-stage result aggregation of one run.
type Report struct {
	RunID       string
	Date        string
	BasePath    string
	Start       time.Time
	End         time.Time
	State       State
	Transitions []State
	Outcome     Outcome
	Outcomes    []StageOutcome
	Artifact    *Artifact
	Err         error
	NeonVersion string
}

func newReport(runID string, start time.Time) *Report {
	return &Report{
		RunID:       runID,
		Start:       start,
		State:       StateInit,
		Transitions: []State{StateInit},
		NeonVersion: version.Version,
	}
}

// transition moves the report to s. A terminal state is final.
func (r *Report) transition(s State) {
	if r.State.Terminal() {
		return
	}
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

func (r *Report) record(o StageOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Succeeded reports whether the run reached DONE.
func (r *Report) Succeeded() bool { return r.State == StateDone }

// StageOutcomes returns the recorded outcomes for one stage, in order.
func (r *Report) StageOutcomes(stage StageName) []StageOutcome {
	var out []StageOutcome
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the names of units that failed in the given stage.
func (r *Report) Failed(stage StageName) []string {
	var names []string
	for _, o := range r.StageOutcomes(stage) {
		if o.Result == ResultFailed || o.Result == ResultCanceled {
			names = append(names, o.Name)
		}
	}
	return names
}
