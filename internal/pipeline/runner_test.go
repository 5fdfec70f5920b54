package pipeline

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/workspace"
)

// journal records the order in which fakes are invoked and the contexts they saw.
type journal struct {
	calls    []string
	contexts []*buildcontext.Context
}

func (j *journal) add(call string, bc *buildcontext.Context) {
	j.calls = append(j.calls, call)
	j.contexts = append(j.contexts, bc)
}

type fakeFetch struct {
	name string
	deps []string
	err  error
	fn   func(ctx context.Context) error
	j    *journal
}

func (f *fakeFetch) Name() string        { return f.name }
func (f *fakeFetch) DependsOn() []string { return f.deps }
func (f *fakeFetch) Fetch(ctx context.Context, bc *buildcontext.Context, _ *config.Config) error {
	f.j.add(f.name+".fetch", bc)
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.err
}

type fakeBuild struct {
	deps    []string
	err     error
	gotDeps DependencySet
	j       *journal
}

func (b *fakeBuild) Name() string        { return "amarok" }
func (b *fakeBuild) DependsOn() []string { return b.deps }
func (b *fakeBuild) Build(_ context.Context, bc *buildcontext.Context, _ *config.Config, deps DependencySet) (*Artifact, error) {
	b.j.add("build", bc)
	b.gotDeps = deps
	if b.err != nil {
		return nil, b.err
	}
	return &Artifact{Name: "amarok", Version: bc.AppVersion(), Date: bc.Date(), InstallDir: bc.InstallPath()}, nil
}

type fakePublish struct {
	name     string
	err      error
	artifact *Artifact
	ftpHost  string
	j        *journal
}

func (p *fakePublish) Name() string { return p.name }
func (p *fakePublish) Publish(_ context.Context, bc *buildcontext.Context, cfg *config.Config, a *Artifact) error {
	p.j.add(p.name+".publish", bc)
	p.artifact = a
	p.ftpHost, _ = cfg.Get("ftp_host")
	return p.err
}

type fakeClean struct {
	err error
	j   *journal
}

func (c *fakeClean) Clean(_ context.Context, bc *buildcontext.Context, _ *config.Config) error {
	c.j.add("cleanup", bc)
	return c.err
}

// harness wires a Runner to fakes for the scenario home=/h, now=2024-03-05T00:00:00Z.
type harness struct {
	j         *journal
	runner    *Runner
	config    string
	contexts  int
	workspace string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{j: &journal{}, config: "ftp_host: ftp.example.org\n"}
	factory := DefaultContextFactory(buildcontext.MapEnv{"HOME": "/h"})
	h.runner = &Runner{
		Loader: func(string) (*config.Config, error) { return config.Parse([]byte(h.config)) },
		NewContext: func(cfg *config.Config, runID string, now time.Time) (*buildcontext.Context, error) {
			h.contexts++
			return factory(cfg, runID, now)
		},
		Workspace: func(bc *buildcontext.Context) (func() error, error) {
			h.workspace = bc.BasePath()
			return func() error { return nil }, nil
		},
		Clock:    clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		NewRunID: func() string { return "run-1" },
	}
	return h
}

func (h *harness) plan(fetch []*fakeFetch, build *fakeBuild, publish []*fakePublish, clean *fakeClean) Planner {
	p := &Plan{Builder: build}
	for _, f := range fetch {
		f.j = h.j
		p.FetchUnits = append(p.FetchUnits, f)
	}
	build.j = h.j
	for _, t := range publish {
		t.j = h.j
		p.Publishers = append(p.Publishers, t)
	}
	if clean != nil {
		clean.j = h.j
		p.Cleaner = clean
	}
	return StaticPlan(p)
}

func assertCalls(t *testing.T, j *journal, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, j.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
}

func exitCode(err error) int {
	return errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err)
}

func TestRun_ScenarioAllSucceed(t *testing.T) {
	h := newHarness(t)
	file, ftp := &fakePublish{name: "File"}, &fakePublish{name: "Ftp"}
	planner := h.plan(
		[]*fakeFetch{{name: "A"}, {name: "B"}},
		&fakeBuild{},
		[]*fakePublish{file, ftp},
		&fakeClean{},
	)

	rep, err := h.runner.Run(context.Background(), "/h/.neonrc", planner)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode(err))

	assertCalls(t, h.j, "A.fetch", "B.fetch", "build", "File.publish", "Ftp.publish", "cleanup")
	assert.Equal(t, "/h/nightly-root/20240305", h.workspace)
	assert.Equal(t, "/h/nightly-root/20240305", rep.BasePath)
	assert.Equal(t, "20240305", rep.Date)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.True(t, rep.Succeeded())
	assert.Equal(t, []State{
		StateInit, StateConfigLoaded, StateContextReady, StateFetching,
		StateBuilt, StatePublishing, StateCleaning, StateDone,
	}, rep.Transitions)

	// one context, shared by every unit
	assert.Equal(t, 1, h.contexts)
	for _, bc := range h.j.contexts[1:] {
		assert.Same(t, h.j.contexts[0], bc)
	}

	require.NotNil(t, rep.Artifact)
	assert.Same(t, rep.Artifact, file.artifact)
	assert.Same(t, rep.Artifact, ftp.artifact)
	assert.Equal(t, "ftp.example.org", ftp.ftpHost)
}

func TestRun_ScenarioFetchFailure(t *testing.T) {
	h := newHarness(t)
	planner := h.plan(
		[]*fakeFetch{{name: "A"}, {name: "B", err: stdErrors.New("svn: connection refused")}},
		&fakeBuild{},
		[]*fakePublish{{name: "File"}, {name: "Ftp"}},
		&fakeClean{},
	)

	rep, err := h.runner.Run(context.Background(), "/h/.neonrc", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "A.fetch", "B.fetch")

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetch, se.Stage)
	assert.Equal(t, "B", se.Name)
	assert.Contains(t, err.Error(), "B")
	assert.True(t, errors.HasCategory(err, errors.CategoryFetch))
	assert.Equal(t, 8, exitCode(err))

	assert.Equal(t, StateFailed, rep.State)
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Equal(t, []string{"B"}, rep.Failed(StageFetch))
	assert.Nil(t, rep.Artifact)
}

func TestRun_FailFastStopsAtFirstFetchFailure(t *testing.T) {
	h := newHarness(t)
	planner := h.plan(
		[]*fakeFetch{{name: "A", err: stdErrors.New("boom")}, {name: "B"}, {name: "C"}},
		&fakeBuild{}, []*fakePublish{{name: "File"}}, nil,
	)
	_, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "A.fetch")
}

func TestRun_ContinueFetchSkipsDependents(t *testing.T) {
	h := newHarness(t)
	h.config = "policy:\n  fetch: continue\n"
	planner := h.plan(
		[]*fakeFetch{
			{name: "qtcopy", err: stdErrors.New("unreachable")},
			{name: "kdelibs", deps: []string{"qtcopy"}},
			{name: "kdebase", deps: []string{"kdelibs"}},
			{name: "taglib"},
		},
		&fakeBuild{}, []*fakePublish{{name: "File"}}, nil,
	)

	rep, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "qtcopy.fetch", "taglib.fetch")

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "qtcopy", se.Name)

	results := map[string]Result{}
	for _, o := range rep.StageOutcomes(StageFetch) {
		results[o.Name] = o.Result
	}
	assert.Equal(t, map[string]Result{
		"qtcopy":  ResultFailed,
		"kdelibs": ResultSkipped,
		"kdebase": ResultSkipped,
		"taglib":  ResultSuccess,
	}, results)
}

func TestRun_ContinueFetchAggregatesFailures(t *testing.T) {
	h := newHarness(t)
	h.config = "policy:\n  fetch: continue\n"
	planner := h.plan(
		[]*fakeFetch{{name: "A", err: stdErrors.New("a")}, {name: "B", err: stdErrors.New("b")}},
		&fakeBuild{}, nil, nil,
	)
	_, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "A.fetch", "B.fetch")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "A, B", se.Name)
	assert.True(t, errors.HasCategory(err, errors.CategoryFetch))
}

func TestRun_BuildFailureSkipsPublish(t *testing.T) {
	h := newHarness(t)
	planner := h.plan(
		[]*fakeFetch{{name: "A"}},
		&fakeBuild{err: stdErrors.New("make: *** [all] Error 2")},
		[]*fakePublish{{name: "File"}}, &fakeClean{},
	)
	rep, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "A.fetch", "build")
	assert.Equal(t, 11, exitCode(err))
	assert.Equal(t, []State{StateInit, StateConfigLoaded, StateContextReady, StateFetching, StateFailed}, rep.Transitions)
}

func TestRun_PublishPolicies(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		errs     []error
		calls    []string
		failedAt string
	}{
		{
			name:     "continue is the default",
			errs:     []error{stdErrors.New("disk full"), nil},
			calls:    []string{"A.fetch", "build", "File.publish", "Ftp.publish"},
			failedAt: "File",
		},
		{
			name:     "fail_fast stops at first target",
			config:   "policy:\n  publish: fail_fast\n",
			errs:     []error{stdErrors.New("disk full"), nil},
			calls:    []string{"A.fetch", "build", "File.publish"},
			failedAt: "File",
		},
		{
			name:     "continue aggregates",
			errs:     []error{stdErrors.New("disk full"), stdErrors.New("530 login incorrect")},
			calls:    []string{"A.fetch", "build", "File.publish", "Ftp.publish"},
			failedAt: "File, Ftp",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.config != "" {
				h.config = tt.config
			}
			planner := h.plan(
				[]*fakeFetch{{name: "A"}}, &fakeBuild{},
				[]*fakePublish{{name: "File", err: tt.errs[0]}, {name: "Ftp", err: tt.errs[1]}},
				&fakeClean{},
			)
			rep, err := h.runner.Run(context.Background(), "", planner)
			require.Error(t, err)
			assertCalls(t, h.j, tt.calls...)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StagePublish, se.Stage)
			assert.Equal(t, tt.failedAt, se.Name)
			assert.Equal(t, 9, exitCode(err))
			assert.Equal(t, StateFailed, rep.State)
		})
	}
}

func TestRun_ConfigFailureRunsNothing(t *testing.T) {
	h := newHarness(t)
	h.config = "ftp_host: [unterminated\n"
	planner := h.plan([]*fakeFetch{{name: "A"}}, &fakeBuild{}, []*fakePublish{{name: "File"}}, &fakeClean{})

	rep, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assert.Empty(t, h.j.calls)
	assert.Equal(t, 0, h.contexts)
	assert.Equal(t, []State{StateInit, StateFailed}, rep.Transitions)
	assert.Equal(t, 7, exitCode(err))
}

func TestRun_LoaderErrorIsClassifiedAsConfig(t *testing.T) {
	h := newHarness(t)
	h.runner.Loader = func(string) (*config.Config, error) { return nil, stdErrors.New("permission denied") }
	_, err := h.runner.Run(context.Background(), "", h.plan(nil, &fakeBuild{}, nil, nil))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestRun_UnresolvableHome(t *testing.T) {
	h := newHarness(t)
	h.runner.NewContext = DefaultContextFactory(buildcontext.MapEnv{})
	planner := h.plan([]*fakeFetch{{name: "A"}}, &fakeBuild{}, nil, nil)

	rep, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assert.Empty(t, h.j.calls)
	assert.Equal(t, 6, exitCode(err))
	assert.Equal(t, []State{StateInit, StateConfigLoaded, StateFailed}, rep.Transitions)
}

func TestRun_WorkspaceLockedElsewhere(t *testing.T) {
	h := newHarness(t)
	h.runner.Workspace = func(*buildcontext.Context) (func() error, error) {
		return nil, errors.EnvironmentError("run already in progress").Build()
	}
	_, err := h.runner.Run(context.Background(), "", h.plan([]*fakeFetch{{name: "A"}}, &fakeBuild{}, nil, nil))
	require.Error(t, err)
	assert.Empty(t, h.j.calls)
	assert.Contains(t, err.Error(), "run already in progress")
}

func TestRun_RealWorkspaceSerializesSameDayRuns(t *testing.T) {
	h := newHarness(t)
	h.runner.NewContext = DefaultContextFactory(buildcontext.MapEnv{"HOME": t.TempDir()})
	h.runner.Workspace = nil

	var inner error
	blocking := &fakeFetch{name: "A", fn: func(ctx context.Context) error {
		second := *h.runner
		second.NewRunID = func() string { return "run-2" }
		_, inner = second.Run(ctx, "", StaticPlan(&Plan{Builder: &fakeBuild{j: &journal{}}}))
		return nil
	}}
	_, err := h.runner.Run(context.Background(), "", h.plan([]*fakeFetch{blocking}, &fakeBuild{}, nil, nil))
	require.NoError(t, err)
	require.Error(t, inner)
	assert.True(t, errors.HasCategory(inner, errors.CategoryEnvironment))

	// lock released after the first run
	_, err = h.runner.Run(context.Background(), "", StaticPlan(&Plan{Builder: &fakeBuild{j: &journal{}}}))
	require.NoError(t, err)
}

func TestRun_RealWorkspaceTakesOverStaleLock(t *testing.T) {
	h := newHarness(t)
	home := t.TempDir()
	h.runner.NewContext = DefaultContextFactory(buildcontext.MapEnv{"HOME": home})
	h.runner.Workspace = nil

	crashed := exec.Command("true")
	require.NoError(t, crashed.Run())
	base := filepath.Join(home, "nightly-root", "20240305")
	require.NoError(t, os.MkdirAll(base, 0o750))
	lock := filepath.Join(base, workspace.LockFileName)
	require.NoError(t, os.WriteFile(lock, fmt.Appendf(nil, "run-0 pid=%d\n", crashed.Process.Pid), 0o600))

	rep, err := h.runner.Run(context.Background(), "", h.plan([]*fakeFetch{{name: "A"}}, &fakeBuild{}, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, base, rep.BasePath)
	assert.NoFileExists(t, lock)
}

func TestRun_CancellationStopsBetweenUnits(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	planner := h.plan(
		[]*fakeFetch{
			{name: "A", fn: func(context.Context) error { cancel(); return nil }},
			{name: "B"},
		},
		&fakeBuild{}, nil, nil,
	)

	rep, err := h.runner.Run(ctx, "", planner)
	require.Error(t, err)
	assertCalls(t, h.j, "A.fetch")
	assert.Equal(t, OutcomeCanceled, rep.Outcome)
	assert.Equal(t, 130, exitCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_FetchTimeout(t *testing.T) {
	h := newHarness(t)
	h.config = "timeouts:\n  fetch: 20ms\n"
	planner := h.plan(
		[]*fakeFetch{{name: "A", fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
		&fakeBuild{}, nil, nil,
	)
	_, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, errors.HasCategory(err, errors.CategoryFetch))
}

func TestRun_DependencySet(t *testing.T) {
	t.Run("declared", func(t *testing.T) {
		h := newHarness(t)
		build := &fakeBuild{deps: []string{"taglib"}}
		_, err := h.runner.Run(context.Background(), "", h.plan([]*fakeFetch{{name: "qtcopy"}, {name: "taglib"}}, build, nil, nil))
		require.NoError(t, err)
		assert.Equal(t, DependencySet{"taglib": "/h/nightly-root/20240305/taglib"}, build.gotDeps)
	})
	t.Run("all fetched", func(t *testing.T) {
		h := newHarness(t)
		build := &fakeBuild{}
		_, err := h.runner.Run(context.Background(), "", h.plan([]*fakeFetch{{name: "qtcopy"}, {name: "taglib"}}, build, nil, nil))
		require.NoError(t, err)
		assert.Equal(t, DependencySet{
			"qtcopy": "/h/nightly-root/20240305/qtcopy",
			"taglib": "/h/nightly-root/20240305/taglib",
		}, build.gotDeps)
	})
}

func TestRun_CleanupFailure(t *testing.T) {
	h := newHarness(t)
	planner := h.plan([]*fakeFetch{{name: "A"}}, &fakeBuild{}, []*fakePublish{{name: "File"}}, &fakeClean{err: stdErrors.New("rm: busy")})
	rep, err := h.runner.Run(context.Background(), "", planner)
	require.Error(t, err)
	assert.Equal(t, 12, exitCode(err))
	assert.Equal(t, StateCleaning, rep.Transitions[len(rep.Transitions)-2])
	assert.Equal(t, StateFailed, rep.State)
}

func TestRun_PlannerWithoutBuilder(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.Run(context.Background(), "", StaticPlan(&Plan{}))
	require.Error(t, err)
	assert.Equal(t, 10, exitCode(err))
}
