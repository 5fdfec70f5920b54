// Package planner turns the descriptor lists of a configuration into the
// capability implementations the pipeline runs.
package planner

import (
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/builder"
	"git.home.luguber.info/inful/neon/internal/cleanup"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/fetch"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/metrics"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/publish"
	"git.home.luguber.info/inful/neon/internal/retry"
)

// Planner maps components to git fetch units, the build section to a command
// driver and publish descriptors to targets. Network units share one retrier
// whose retries are counted by Recorder.
type Planner struct {
	Recorder metrics.Recorder
	Clock    clockwork.Clock
}

// New returns a planner reporting retries to rec (nil means no metrics).
func New(rec metrics.Recorder) *Planner {
	return &Planner{Recorder: rec}
}

var _ pipeline.Planner = (*Planner)(nil)

// Plan builds the run's capability set in declaration order.
func (p *Planner) Plan(cfg *config.Config, _ *buildcontext.Context) (*pipeline.Plan, error) {
	if cfg.Build == nil {
		return nil, errors.ConfigError("configuration has no build section").Build()
	}

	r := p.retrier(cfg)
	plan := &pipeline.Plan{
		Builder: builder.NewCommandDriver(*cfg.Build),
		Cleaner: cleanup.NewRetention(),
	}
	for _, c := range cfg.Components {
		plan.FetchUnits = append(plan.FetchUnits, fetch.NewGitUnit(c, r))
	}
	for _, t := range cfg.Publish {
		target, err := publish.New(t, r)
		if err != nil {
			return nil, err
		}
		plan.Publishers = append(plan.Publishers, target)
	}
	return plan, nil
}

func (p *Planner) retrier(cfg *config.Config) *retry.Retrier {
	r := retry.New(retry.FromConfig(cfg.Retry))
	if p.Clock != nil {
		r.Clock = p.Clock
	}
	rec := p.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	r.OnRetry = func(op string, _ int, _ error) { rec.IncRetry(op) }
	return r
}
