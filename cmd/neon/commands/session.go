package commands

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/history"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/metrics"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/planner"
)

// session holds the collaborators that outlive a single run: the metrics
// registry and the history ledger.
type session struct {
	env      buildcontext.Env
	clock    clockwork.Clock
	recorder *metrics.PrometheusRecorder
	store    *history.SQLiteStore
	planner  *planner.Planner
}

// openSession wires metrics and, unless disabled, history for cfg. A history
// ledger that cannot be opened is logged and skipped.
func openSession(cfg *config.Config, env buildcontext.Env, clock clockwork.Clock) *session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rec := metrics.NewPrometheusRecorder(nil)
	s := &session{env: env, clock: clock, recorder: rec, planner: &planner.Planner{Recorder: rec, Clock: clock}}
	if cfg == nil || cfg.History.Disabled {
		return s
	}
	path, err := historyPath(cfg, env)
	if err != nil {
		slog.Warn("Run history unavailable", logfields.Error(err))
		return s
	}
	store, err := history.NewSQLiteStore(path, history.WithClock(clock))
	if err != nil {
		slog.Warn("Run history unavailable", logfields.Path(path), logfields.Error(err))
		return s
	}
	s.store = store
	return s
}

// runner returns a pipeline runner reporting to the session's observers.
// loader overrides configuration loading when non-nil.
func (s *session) runner(loader func(string) (*config.Config, error)) *pipeline.Runner {
	observers := []pipeline.Observer{
		pipeline.LogObserver{Logger: slog.Default()},
		pipeline.RecorderObserver{Recorder: s.recorder},
	}
	if s.store != nil {
		observers = append(observers, history.NewObserver(s.store))
	}
	r := pipeline.NewRunner(observers...)
	r.Loader = loader
	r.NewContext = pipeline.DefaultContextFactory(s.env)
	r.Clock = s.clock
	return r
}

// exportMetrics writes the textfile when one is configured.
func (s *session) exportMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, s.recorder.Registry()); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}

func (s *session) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		slog.Warn("Failed to close run history", logfields.Error(err))
	}
}
