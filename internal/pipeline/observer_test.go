package pipeline

import (
	"bytes"
	"context"
	stdErrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/neon/internal/metrics"
)

type recordingObserver struct {
	events []string
	final  *Report
}

func (r *recordingObserver) OnRunStart(rep *Report) { r.events = append(r.events, "run:"+rep.RunID) }
func (r *recordingObserver) OnStageStart(stage StageName) {
	r.events = append(r.events, "start:"+string(stage))
}
func (r *recordingObserver) OnUnitComplete(o StageOutcome) {
	r.events = append(r.events, "unit:"+o.Name+":"+string(o.Result))
}
func (r *recordingObserver) OnStageComplete(stage StageName, _ time.Duration, res Result) {
	r.events = append(r.events, "done:"+string(stage)+":"+string(res))
}
func (r *recordingObserver) OnRunComplete(rep *Report) { r.final = rep }

func TestObserver_EventOrder(t *testing.T) {
	h := newHarness(t)
	obs := &recordingObserver{}
	h.runner.Observers = []Observer{obs, NoopObserver{}}

	_, err := h.runner.Run(context.Background(), "", h.plan(
		[]*fakeFetch{{name: "A"}}, &fakeBuild{}, []*fakePublish{{name: "File"}}, &fakeClean{},
	))
	require.NoError(t, err)

	want := []string{
		"run:run-1",
		"start:config", "done:config:success",
		"start:context", "done:context:success",
		"start:plan", "done:plan:success",
		"start:fetch", "unit:A:success", "done:fetch:success",
		"start:build", "unit:amarok:success", "done:build:success",
		"start:publish", "unit:File:success", "done:publish:success",
		"start:cleanup", "unit:retention:success", "done:cleanup:success",
	}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, obs.final)
	assert.Equal(t, StateDone, obs.final.State)
}

type countingRecorder struct {
	metrics.NoopRecorder
	units       []string
	stages      map[string]metrics.ResultLabel
	outcome     metrics.RunOutcomeLabel
	lastSuccess time.Time
}

func (c *countingRecorder) ObserveUnitDuration(stage, unit string, _ time.Duration, r metrics.ResultLabel) {
	c.units = append(c.units, stage+"/"+unit+"/"+string(r))
}
func (c *countingRecorder) IncStageResult(stage string, r metrics.ResultLabel) { c.stages[stage] = r }
func (c *countingRecorder) IncRunOutcome(o metrics.RunOutcomeLabel)            { c.outcome = o }
func (c *countingRecorder) SetLastSuccess(t time.Time)                         { c.lastSuccess = t }

func TestRecorderObserver(t *testing.T) {
	h := newHarness(t)
	rec := &countingRecorder{stages: map[string]metrics.ResultLabel{}}
	h.runner.Observers = []Observer{RecorderObserver{Recorder: rec}}

	_, err := h.runner.Run(context.Background(), "", h.plan(
		[]*fakeFetch{{name: "A"}, {name: "B", err: stdErrors.New("down")}}, &fakeBuild{}, nil, nil,
	))
	require.Error(t, err)
	assert.Equal(t, []string{"fetch/A/success", "fetch/B/failed"}, rec.units)
	assert.Equal(t, metrics.ResultFailed, rec.stages["fetch"])
	assert.Equal(t, metrics.RunOutcomeFailed, rec.outcome)
	assert.True(t, rec.lastSuccess.IsZero())
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := newHarness(t)
	h.runner.Observers = []Observer{LogObserver{Logger: logger}}

	_, err := h.runner.Run(context.Background(), "", h.plan(
		[]*fakeFetch{{name: "A", err: stdErrors.New("down")}}, &fakeBuild{}, nil, nil,
	))
	require.Error(t, err)
	out := buf.String()
	assert.Contains(t, out, "Unit failed")
	assert.Contains(t, out, "component=A")
	assert.Contains(t, out, "Nightly run failed")
	assert.Contains(t, out, "state=FAILED")
}
