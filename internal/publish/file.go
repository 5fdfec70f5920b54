package publish

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// LatestLink names the symlink pointing at the most recent date directory.
const LatestLink = "latest"

// FileTarget copies the archive and its checksum into <path>/<date>/.
type FileTarget struct {
	target config.PublishTarget
}

func NewFileTarget(t config.PublishTarget) *FileTarget { return &FileTarget{target: t} }

func (f *FileTarget) Name() string { return f.target.Name }

func (f *FileTarget) Publish(ctx context.Context, bc *buildcontext.Context, _ *config.Config, a *pipeline.Artifact) error {
	if err := requireArchive(f.target.Name, a); err != nil {
		return err
	}
	root := bc.Expand([]string{f.target.Path}, nil)[0]
	dest := filepath.Join(root, bc.Date())
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return publishError(f.target.Name, "failed to create destination", fsError(err, dest))
	}

	for _, src := range []string{a.Archive, checksumPath(a)} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return publishError(f.target.Name, "failed to copy artifact", fsError(err, src))
		}
	}

	if f.target.Latest {
		if err := relink(filepath.Join(root, LatestLink), bc.Date()); err != nil {
			return publishError(f.target.Name, "failed to update latest link", fsError(err, root))
		}
	}

	slog.Info("Artifact copied", logfields.Target(f.target.Name), logfields.Path(dest))
	return nil
}

func fsError(err error, path string) error {
	return errors.FileSystemError("filesystem operation failed").WithCause(err).WithContext("path", path).Build()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// relink points link at target, replacing an existing link.
func relink(link, target string) error {
	tmp := link + ".new"
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, link)
}
