package history

import (
	stdErrors "errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/neon/internal/pipeline"
)

func TestObserver_RecordsRun(t *testing.T) {
	store := newStore(t, clockwork.NewFakeClockAt(epoch))
	obs := NewObserver(store)

	report := &pipeline.Report{RunID: "run-7", Start: epoch, NeonVersion: "1.2.3"}
	obs.OnRunStart(report)
	obs.OnStageStart(pipeline.StageFetch)
	obs.OnUnitComplete(pipeline.StageOutcome{Stage: pipeline.StageFetch, Name: "taglib", Result: pipeline.ResultSuccess, Duration: 2 * time.Second})
	obs.OnUnitComplete(pipeline.StageOutcome{Stage: pipeline.StageFetch, Name: "amarok", Result: pipeline.ResultFailed, Err: stdErrors.New("clone failed")})
	obs.OnStageComplete(pipeline.StageFetch, 3*time.Second, pipeline.ResultFailed)

	report.Date = "20240305"
	report.BasePath = "/h/nightly-root/20240305"
	report.End = epoch.Add(3 * time.Second)
	report.State = pipeline.StateFailed
	report.Outcome = pipeline.OutcomeFailed
	report.Err = stdErrors.New("stage fetch failed for amarok")
	obs.OnRunComplete(report)

	events, err := store.GetByRunID(t.Context(), "run-7")
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{EventRunStarted, EventUnitCompleted, EventUnitCompleted, EventStageCompleted, EventRunCompleted}, types)

	var unit UnitCompleted
	require.NoError(t, events[2].Decode(&unit))
	assert.Equal(t, "clone failed", unit.Error)
	assert.Equal(t, "20240305", events[4].Metadata["date"])

	runs, err := store.RecentRuns(t.Context(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	s := runs[0]
	assert.Equal(t, "failed", s.Status)
	assert.Equal(t, "1.2.3", s.NeonVersion)
	assert.Equal(t, []string{"fetch/amarok"}, s.FailedUnits)
	assert.Equal(t, 3*time.Second, s.Duration)
	assert.Equal(t, "stage fetch failed for amarok", s.Error)
	require.NotNil(t, s.CompletedAt)
}

func TestObserver_StoreFailureDoesNotPanic(t *testing.T) {
	store, err := NewSQLiteStore(MemoryPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	obs := NewObserver(store)
	assert.NotPanics(t, func() {
		obs.OnRunStart(&pipeline.Report{RunID: "run-8", Start: epoch})
		obs.OnRunComplete(&pipeline.Report{RunID: "run-8", Start: epoch, End: epoch})
	})
}
