package publish

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// PublishLogName receives the output of distro upload commands.
const PublishLogName = "publish.log"

// DistroTarget hands the artifact to a distribution upload tool such as dput.
// The command supports the build context placeholders plus {artifact},
// {checksum} and {archive_name}.
type DistroTarget struct {
	target config.PublishTarget
}

func NewDistroTarget(t config.PublishTarget) *DistroTarget { return &DistroTarget{target: t} }

func (d *DistroTarget) Name() string { return d.target.Name }

func (d *DistroTarget) Publish(ctx context.Context, bc *buildcontext.Context, _ *config.Config, a *pipeline.Artifact) error {
	if err := requireArchive(d.target.Name, a); err != nil {
		return err
	}
	extra := map[string]string{
		"artifact":     a.Archive,
		"checksum":     checksumPath(a),
		"archive_name": filepath.Base(a.Archive),
	}
	argv := bc.Expand(d.target.Command, extra)

	if err := os.MkdirAll(bc.LogsPath(), 0o750); err != nil {
		return publishError(d.target.Name, "failed to create logs directory", fsError(err, bc.LogsPath()))
	}
	logPath := filepath.Join(bc.LogsPath(), PublishLogName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return publishError(d.target.Name, "failed to open publish log", fsError(err, logPath))
	}
	defer func() { _ = logFile.Close() }()

	slog.Info("Running distro upload", logfields.Target(d.target.Name), slog.String("cmd", strings.Join(argv, " ")))
	_, _ = fmt.Fprintf(logFile, "[%s] $ %s\n", d.target.Name, strings.Join(argv, " "))
	// #nosec G204 - argv comes from the operator's own configuration file
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(a.Archive)
	cmd.Env = d.environment(bc, a, extra)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return errors.PublishError("distro upload command failed").
			WithCause(err).
			WithContext("target", d.target.Name).
			WithContext("command", strings.Join(argv, " ")).
			WithContext("log", logPath).
			Build()
	}
	return nil
}

func (d *DistroTarget) environment(bc *buildcontext.Context, a *pipeline.Artifact, extra map[string]string) []string {
	env := append(os.Environ(),
		"NEON_ARTIFACT="+a.Archive,
		"NEON_CHECKSUM="+a.Checksum,
		"NEON_VERSION="+bc.AppVersion(),
		"NEON_DATE="+bc.Date(),
		"NEON_REVISION="+bc.Revision(),
	)
	for _, k := range slices.Sorted(maps.Keys(d.target.Env)) {
		env = append(env, k+"="+bc.Expand([]string{d.target.Env[k]}, extra)[0])
	}
	return env
}
