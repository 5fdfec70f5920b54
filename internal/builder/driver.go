package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// BuildDirName is the out-of-source build directory inside the component tree.
const BuildDirName = "_build"

// LogFileName receives the combined output of all build steps.
const LogFileName = "build.log"

// CommandDriver builds by running argv steps in sequence.
type CommandDriver struct {
	build config.BuildConfig
}

// NewCommandDriver returns a driver for the build section of the configuration.
func NewCommandDriver(b config.BuildConfig) *CommandDriver {
	return &CommandDriver{build: b}
}

func (d *CommandDriver) Name() string { return d.build.Component }

// DependsOn lists the components whose trees the build needs.
func (d *CommandDriver) DependsOn() []string { return d.build.DependsOn }

// Build runs every step, stopping at the first failure, and packages the install tree.
func (d *CommandDriver) Build(ctx context.Context, bc *buildcontext.Context, _ *config.Config, deps pipeline.DependencySet) (*pipeline.Artifact, error) {
	source := bc.ComponentPath(d.build.Component)
	workDir := filepath.Join(source, BuildDirName)
	for _, dir := range []string{workDir, bc.InstallPath(), bc.LogsPath()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.BuildError("failed to prepare build directories").
				WithCause(err).
				WithContext("path", dir).
				Build()
		}
	}

	logPath := filepath.Join(bc.LogsPath(), LogFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.BuildError("failed to open build log").WithCause(err).WithContext("path", logPath).Build()
	}
	defer func() { _ = logFile.Close() }()

	extra := map[string]string{"source": source}
	env := d.environment(bc, deps, extra)
	for i, step := range d.build.Steps {
		argv := bc.Expand(step, extra)
		if err := d.runStep(ctx, workDir, env, argv, logFile); err != nil {
			return nil, errors.BuildError(fmt.Sprintf("build step %d failed", i+1)).
				WithCause(err).
				WithContext("component", d.build.Component).
				WithContext("step", strings.Join(argv, " ")).
				WithContext("log", logPath).
				Build()
		}
	}

	return d.pack(bc)
}

func (d *CommandDriver) runStep(ctx context.Context, dir string, env, argv []string, log io.Writer) error {
	slog.Info("Running build step", logfields.Component(d.build.Component), slog.String("cmd", strings.Join(argv, " ")))
	_, _ = fmt.Fprintf(log, "$ %s\n", strings.Join(argv, " "))
	// #nosec G204 - argv comes from the operator's own configuration file
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = log
	cmd.Stderr = log
	return cmd.Run()
}

// environment is the process environment plus the NEON_* variables, the
// dependency prefix path and the configured variables (placeholders expanded).
func (d *CommandDriver) environment(bc *buildcontext.Context, deps pipeline.DependencySet, extra map[string]string) []string {
	prefixes := []string{bc.InstallPath()}
	for _, name := range d.dependencyOrder(deps) {
		prefixes = append(prefixes, deps[name])
	}

	env := append(os.Environ(),
		"NEON_BASE="+bc.BasePath(),
		"NEON_INSTALL="+bc.InstallPath(),
		"NEON_VERSION="+bc.AppVersion(),
		"NEON_DATE="+bc.Date(),
		"NEON_REVISION="+bc.Revision(),
		"CMAKE_PREFIX_PATH="+strings.Join(prefixes, string(os.PathListSeparator)),
	)
	for _, k := range slices.Sorted(maps.Keys(d.build.Env)) {
		env = append(env, k+"="+bc.Expand([]string{d.build.Env[k]}, extra)[0])
	}
	return env
}

// dependencyOrder follows the declared dependency order, falling back to name
// order for trees the driver did not declare.
func (d *CommandDriver) dependencyOrder(deps pipeline.DependencySet) []string {
	var order []string
	for _, name := range d.build.DependsOn {
		if _, ok := deps[name]; ok {
			order = append(order, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		if !slices.Contains(order, name) && name != d.build.Component {
			order = append(order, name)
		}
	}
	return order
}

// pack archives the install tree as <slug>.tar.gz with a checksum file next to it.
func (d *CommandDriver) pack(bc *buildcontext.Context) (*pipeline.Artifact, error) {
	if err := os.MkdirAll(bc.ArtifactsPath(), 0o750); err != nil {
		return nil, errors.BuildError("failed to create artifacts directory").WithCause(err).Build()
	}
	name := ArchiveName(d.build.Component, bc)
	archive := filepath.Join(bc.ArtifactsPath(), name+".tar.gz")
	if err := Compress(bc.InstallPath(), name, archive); err != nil {
		return nil, errors.BuildError("failed to archive install tree").
			WithCause(err).
			WithContext("archive", archive).
			Build()
	}
	sum, err := WriteChecksum(archive)
	if err != nil {
		return nil, errors.BuildError("failed to checksum archive").WithCause(err).Build()
	}

	slog.Info("Build packaged", logfields.Component(d.build.Component), logfields.Artifact(archive))
	return &pipeline.Artifact{
		Name:       d.build.Component,
		Version:    bc.AppVersion(),
		Date:       bc.Date(),
		Revision:   bc.Revision(),
		InstallDir: bc.InstallPath(),
		Archive:    archive,
		Checksum:   sum,
	}, nil
}

// ArchiveName is the file-system safe base name of a build's archive.
func ArchiveName(component string, bc *buildcontext.Context) string {
	return slug.Make(fmt.Sprintf("%s-%s-%s-r%s", component, bc.AppVersion(), bc.Date(), bc.Revision()))
}
