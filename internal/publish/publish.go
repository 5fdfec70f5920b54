package publish

import (
	"fmt"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/retry"
)

// New returns the target implementation for a descriptor. Network backed kinds
// use r for transient failures; a nil r disables retries.
func New(t config.PublishTarget, r *retry.Retrier) (pipeline.PublishTarget, error) {
	if r == nil {
		r = retry.New(retry.NewPolicy("", 0, 0, 0))
	}
	switch t.Kind {
	case config.PublishKindFile:
		return NewFileTarget(t), nil
	case config.PublishKindFTP:
		return NewFTPTarget(t, r), nil
	case config.PublishKindDistro:
		return NewDistroTarget(t), nil
	case config.PublishKindNATS:
		return NewNATSTarget(t, r), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown publish kind %q", t.Kind)).
			WithContext("target", t.Name).
			Build()
	}
}

// publishError wraps a target failure, keeping the underlying category as "reason".
func publishError(target, msg string, err error) error {
	return errors.PublishError(msg).
		WithCause(err).
		WithContext("target", target).
		WithContext("reason", string(errors.GetCategory(err))).
		Build()
}

// requireArchive rejects artifacts that were never packaged.
func requireArchive(target string, a *pipeline.Artifact) error {
	if a == nil || a.Archive == "" {
		return errors.PublishError("artifact has no archive").WithContext("target", target).Build()
	}
	return nil
}

// checksumPath is the sha256sum file written next to the archive.
func checksumPath(a *pipeline.Artifact) string {
	return a.Archive + ".sha256"
}
