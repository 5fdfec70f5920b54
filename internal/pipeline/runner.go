package pipeline

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/workspace"
)

// ContextFactory derives the build context of a run from its configuration.
type ContextFactory func(cfg *config.Config, runID string, now time.Time) (*buildcontext.Context, error)

// WorkspaceFunc prepares the base path for a run and returns the function
// releasing it once the run is over.
type WorkspaceFunc func(bc *buildcontext.Context) (release func() error, err error)

// Runner executes nightly runs. The zero value is usable; nil fields fall back
// to the production collaborators.
type Runner struct {
	Loader     func(path string) (*config.Config, error)
	NewContext ContextFactory
	Workspace  WorkspaceFunc
	Clock      clockwork.Clock
	NewRunID   func() string
	Observers  []Observer
}

// NewRunner returns a Runner wired to the production collaborators.
func NewRunner(observers ...Observer) *Runner {
	return &Runner{Observers: observers}
}

// DefaultContextFactory builds contexts from the given environment.
func DefaultContextFactory(env buildcontext.Env) ContextFactory {
	return func(cfg *config.Config, runID string, now time.Time) (*buildcontext.Context, error) {
		configPath := cfg.Path()
		if configPath != "" {
			if abs, err := filepath.Abs(configPath); err == nil {
				configPath = abs
			}
		}
		return buildcontext.New(env, now, buildcontext.Options{
			RootDir:    cfg.RootDir,
			Revision:   cfg.Revision,
			AppVersion: cfg.AppVersion,
			ConfigPath: configPath,
			RunID:      runID,
		})
	}
}

// PrepareWorkspace creates the base path and takes the same-day run lock.
func PrepareWorkspace(bc *buildcontext.Context) (func() error, error) {
	ws := workspace.NewManager(bc.BasePath())
	if err := ws.Create(buildcontext.LogsDir); err != nil {
		return nil, err
	}
	if err := ws.Lock(bc.RunID()); err != nil {
		return nil, err
	}
	return ws.Unlock, nil
}

func (r *Runner) loader() func(string) (*config.Config, error) {
	if r.Loader != nil {
		return r.Loader
	}
	return config.Load
}

func (r *Runner) contextFactory() ContextFactory {
	if r.NewContext != nil {
		return r.NewContext
	}
	return DefaultContextFactory(buildcontext.OSEnv{})
}

func (r *Runner) workspace() WorkspaceFunc {
	if r.Workspace != nil {
		return r.Workspace
	}
	return PrepareWorkspace
}

func (r *Runner) clock() clockwork.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clockwork.NewRealClock()
}

func (r *Runner) runID() string {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return uuid.NewString()
}

func (r *Runner) notify(fn func(Observer)) {
	for _, o := range r.Observers {
		fn(o)
	}
}

// run holds the state of one invocation.
type run struct {
	*Runner
	clk    clockwork.Clock
	report *Report
	cfg    *config.Config
	bc     *buildcontext.Context
	plan   *Plan
}

// Run executes one nightly run. The returned report is never nil; on failure
// the error is a *StageError naming the failing stage and unit.
func (r *Runner) Run(ctx context.Context, configPath string, planner Planner) (*Report, error) {
	clock := r.clock()
	rn := &run{Runner: r, clk: clock, report: newReport(r.runID(), clock.Now())}
	r.notify(func(o Observer) { o.OnRunStart(rn.report) })

	err := rn.execute(ctx, configPath, planner)

	rep := rn.report
	rep.End = clock.Now()
	rep.Err = err
	switch {
	case err == nil:
		rep.Outcome = OutcomeSuccess
	case errors.HasCategory(err, errors.CategoryCanceled):
		rep.transition(StateFailed)
		rep.Outcome = OutcomeCanceled
	default:
		rep.transition(StateFailed)
		rep.Outcome = OutcomeFailed
	}
	r.notify(func(o Observer) { o.OnRunComplete(rep) })
	return rep, err
}

func (rn *run) execute(ctx context.Context, configPath string, planner Planner) error {
	if err := rn.stage(StageConfig, func() error {
		cfg, err := rn.loader()(configPath)
		if err != nil {
			return &StageError{Stage: StageConfig, Err: asCategory(err, errors.CategoryConfig, "failed to load configuration")}
		}
		rn.cfg = cfg
		return nil
	}); err != nil {
		return err
	}
	rn.report.transition(StateConfigLoaded)

	var release func() error
	if err := rn.stage(StageContext, func() error {
		bc, err := rn.contextFactory()(rn.cfg, rn.report.RunID, rn.report.Start)
		if err != nil {
			return &StageError{Stage: StageContext, Err: asCategory(err, errors.CategoryEnvironment, "failed to construct build context")}
		}
		rn.bc = bc
		rn.report.Date = bc.Date()
		rn.report.BasePath = bc.BasePath()
		release, err = rn.workspace()(bc)
		if err != nil {
			return &StageError{Stage: StageContext, Name: bc.BasePath(), Err: asCategory(err, errors.CategoryEnvironment, "failed to prepare base path")}
		}
		return nil
	}); err != nil {
		return err
	}
	defer func() {
		if release == nil {
			return
		}
		if err := release(); err != nil {
			slog.Warn("Failed to release run lock", logfields.Path(rn.bc.BasePath()), logfields.Error(err))
		}
	}()
	rn.report.transition(StateContextReady)

	if err := rn.stage(StagePlan, func() error {
		plan, err := planner.Plan(rn.cfg, rn.bc)
		if err != nil {
			return &StageError{Stage: StagePlan, Err: asCategory(err, errors.CategoryConfig, "failed to plan run")}
		}
		if plan.Builder == nil {
			return &StageError{Stage: StagePlan, Err: errors.InternalError("plan has no build driver").Build()}
		}
		rn.plan = plan
		return nil
	}); err != nil {
		return err
	}

	rn.report.transition(StateFetching)
	if err := rn.stage(StageFetch, func() error { return rn.fetch(ctx) }); err != nil {
		return err
	}

	if err := rn.stage(StageBuild, func() error { return rn.build(ctx) }); err != nil {
		return err
	}
	rn.report.transition(StateBuilt)

	rn.report.transition(StatePublishing)
	if err := rn.stage(StagePublish, func() error { return rn.publish(ctx) }); err != nil {
		return err
	}

	rn.report.transition(StateCleaning)
	if err := rn.stage(StageCleanup, func() error { return rn.cleanup(ctx) }); err != nil {
		return err
	}

	rn.report.transition(StateDone)
	return nil
}

// stage brackets fn with observer notifications.
func (rn *run) stage(name StageName, fn func() error) error {
	rn.notify(func(o Observer) { o.OnStageStart(name) })
	start := rn.clk.Now()
	err := fn()
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
		if errors.HasCategory(err, errors.CategoryCanceled) {
			result = ResultCanceled
		}
	}
	d := rn.clk.Since(start)
	rn.notify(func(o Observer) { o.OnStageComplete(name, d, result) })
	return err
}

// unit runs one fetch unit, build driver, publish target or cleaner and
// records its outcome. The returned outcome's Err is always classified.
func (rn *run) unit(ctx context.Context, stage StageName, name string, timeout time.Duration, fn func(context.Context) error) StageOutcome {
	out := StageOutcome{Stage: stage, Name: name}
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.Result = ResultCanceled
		out.Err = errors.CanceledError("run canceled").WithCause(ctxErr).WithContext("unit", name).Build()
		rn.finishUnit(out)
		return out
	}

	unitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := rn.clk.Now()
	err := fn(unitCtx)
	out.Duration = rn.clk.Since(start)

	switch {
	case err == nil:
		out.Result = ResultSuccess
	case ctx.Err() != nil:
		out.Result = ResultCanceled
		out.Err = errors.CanceledError("run canceled").WithCause(err).WithContext("unit", name).Build()
	case unitCtx.Err() != nil && stdErrors.Is(err, context.DeadlineExceeded):
		out.Result = ResultFailed
		out.Err = errors.WrapError(err, stageCategory(stage), fmt.Sprintf("%s timed out after %s", name, timeout)).
			WithContext("unit", name).
			Build()
	default:
		out.Result = ResultFailed
		out.Err = asCategory(err, stageCategory(stage), fmt.Sprintf("%s %s failed", stage, name))
	}
	rn.finishUnit(out)
	return out
}

func (rn *run) finishUnit(out StageOutcome) {
	rn.report.record(out)
	rn.notify(func(o Observer) { o.OnUnitComplete(out) })
}

func (rn *run) skip(stage StageName, name string, reason error) {
	rn.finishUnit(StageOutcome{Stage: stage, Name: name, Result: ResultSkipped, Err: reason})
}

func (rn *run) fetch(ctx context.Context) error {
	failed := make(map[string]bool)
	var errs []error
	var names []string
	for _, u := range rn.plan.FetchUnits {
		if dep := blockedBy(u, failed); dep != "" {
			failed[u.Name()] = true
			rn.skip(StageFetch, u.Name(), fmt.Errorf("dependency %s did not fetch", dep))
			continue
		}
		out := rn.unit(ctx, StageFetch, u.Name(), rn.cfg.Timeouts.Fetch, func(ctx context.Context) error {
			return u.Fetch(ctx, rn.bc, rn.cfg)
		})
		if out.Err == nil {
			continue
		}
		if out.Result == ResultCanceled || rn.cfg.Policy.Fetch != config.PolicyContinue {
			return &StageError{Stage: StageFetch, Name: u.Name(), Err: out.Err}
		}
		failed[u.Name()] = true
		errs = append(errs, out.Err)
		names = append(names, u.Name())
	}
	return aggregate(StageFetch, names, errs, errors.CategoryFetch, "components failed to fetch")
}

func (rn *run) build(ctx context.Context) error {
	b := rn.plan.Builder
	deps := rn.dependencies()
	var artifact *Artifact
	out := rn.unit(ctx, StageBuild, b.Name(), rn.cfg.Timeouts.Build, func(ctx context.Context) error {
		var err error
		artifact, err = b.Build(ctx, rn.bc, rn.cfg, deps)
		if err == nil && artifact == nil {
			return errors.BuildError("build driver produced no artifact").Build()
		}
		return err
	})
	if out.Err != nil {
		return &StageError{Stage: StageBuild, Name: b.Name(), Err: out.Err}
	}
	rn.report.Artifact = artifact
	return nil
}

// dependencies resolves the source trees handed to the build driver: the
// components it declares, or every fetched component when it declares none.
func (rn *run) dependencies() DependencySet {
	deps := make(DependencySet)
	if d, ok := rn.plan.Builder.(Dependent); ok && len(d.DependsOn()) > 0 {
		for _, name := range d.DependsOn() {
			deps[name] = rn.bc.ComponentPath(name)
		}
		return deps
	}
	for _, u := range rn.plan.FetchUnits {
		deps[u.Name()] = rn.bc.ComponentPath(u.Name())
	}
	return deps
}

func (rn *run) publish(ctx context.Context) error {
	var errs []error
	var names []string
	for _, t := range rn.plan.Publishers {
		out := rn.unit(ctx, StagePublish, t.Name(), rn.cfg.Timeouts.Publish, func(ctx context.Context) error {
			return t.Publish(ctx, rn.bc, rn.cfg, rn.report.Artifact)
		})
		if out.Err == nil {
			continue
		}
		if out.Result == ResultCanceled || rn.cfg.Policy.Publish != config.PolicyContinue {
			return &StageError{Stage: StagePublish, Name: t.Name(), Err: out.Err}
		}
		errs = append(errs, out.Err)
		names = append(names, t.Name())
	}
	return aggregate(StagePublish, names, errs, errors.CategoryPublish, "publish targets failed")
}

func (rn *run) cleanup(ctx context.Context) error {
	if rn.plan.Cleaner == nil {
		rn.skip(StageCleanup, "retention", nil)
		return nil
	}
	out := rn.unit(ctx, StageCleanup, "retention", 0, func(ctx context.Context) error {
		return rn.plan.Cleaner.Clean(ctx, rn.bc, rn.cfg)
	})
	if out.Err != nil {
		return &StageError{Stage: StageCleanup, Name: "retention", Err: out.Err}
	}
	return nil
}

// blockedBy returns the first declared dependency of u that failed.
func blockedBy(u FetchUnit, failed map[string]bool) string {
	d, ok := u.(Dependent)
	if !ok {
		return ""
	}
	for _, dep := range d.DependsOn() {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// aggregate folds the failures collected under the continue policy into one StageError.
func aggregate(stage StageName, names []string, errs []error, category errors.ErrorCategory, msg string) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return &StageError{Stage: stage, Name: names[0], Err: errs[0]}
	}
	return &StageError{
		Stage: stage,
		Name:  strings.Join(names, ", "),
		Err: errors.NewError(category, fmt.Sprintf("%d %s", len(errs), msg)).
			WithCause(stdErrors.Join(errs...)).
			WithContext("failed", strings.Join(names, ", ")).
			Build(),
	}
}

func stageCategory(stage StageName) errors.ErrorCategory {
	switch stage {
	case StageFetch:
		return errors.CategoryFetch
	case StageBuild:
		return errors.CategoryBuild
	case StagePublish:
		return errors.CategoryPublish
	case StageCleanup:
		return errors.CategoryCleanup
	default:
		return errors.CategoryInternal
	}
}

// asCategory leaves classified errors alone and wraps anything else in category.
func asCategory(err error, category errors.ErrorCategory, msg string) error {
	if errors.IsClassified(err) {
		return err
	}
	return errors.WrapError(err, category, msg).Build()
}
