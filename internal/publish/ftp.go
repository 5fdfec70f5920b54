package publish

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/retry"
)

const (
	defaultFTPPort   = "21"
	anonymousUser    = "anonymous"
	ftpDialTimeout   = 30 * time.Second
	statusNotLogged  = 530
	statusNoFileHere = 550
)

// FTPTarget uploads the archive and checksum to <remote_dir>/<date>/ on an FTP server.
type FTPTarget struct {
	target  config.PublishTarget
	retrier *retry.Retrier
}

func NewFTPTarget(t config.PublishTarget, r *retry.Retrier) *FTPTarget {
	return &FTPTarget{target: t, retrier: r}
}

func (f *FTPTarget) Name() string { return f.target.Name }

func (f *FTPTarget) Publish(ctx context.Context, bc *buildcontext.Context, _ *config.Config, a *pipeline.Artifact) error {
	if err := requireArchive(f.target.Name, a); err != nil {
		return err
	}
	addr := ftpAddress(f.target.Address)
	remote := path.Join(f.target.RemoteDir, bc.Date())

	err := f.retrier.Do(ctx, "ftp upload "+f.target.Name, func(ctx context.Context) error {
		return f.upload(ctx, addr, remote, a)
	})
	if err != nil {
		return publishError(f.target.Name, "ftp upload failed", err)
	}
	slog.Info("Artifact uploaded",
		logfields.Target(f.target.Name),
		logfields.URL("ftp://"+addr+"/"+strings.TrimPrefix(remote, "/")))
	return nil
}

func (f *FTPTarget) upload(ctx context.Context, addr, remote string, a *pipeline.Artifact) error {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return errors.NetworkError("failed to connect to ftp server").
			WithCause(err).
			WithContext("address", addr).
			Build()
	}
	defer func() { _ = conn.Quit() }()

	user, pass := f.target.Username, f.target.Password
	if user == "" {
		user, pass = anonymousUser, anonymousUser+"@"
	}
	if err := conn.Login(user, pass); err != nil {
		if hasStatus(err, statusNotLogged) {
			return errors.AuthError("ftp login rejected").WithCause(err).WithContext("user", user).Build()
		}
		return errors.NetworkError("ftp login failed").WithCause(err).Build()
	}

	if remote != "" && remote != "." {
		makeDirs(conn, remote)
		if err := conn.ChangeDir(remote); err != nil {
			return errors.PublishError("failed to enter remote directory").
				WithCause(err).
				WithContext("remote_dir", remote).
				Build()
		}
	}

	for _, local := range []string{a.Archive, checksumPath(a)} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stor(conn, local); err != nil {
			return err
		}
	}
	return nil
}

// makeDirs creates each level of dir; failures are ignored since the
// directory usually exists already and ChangeDir reports real problems.
func makeDirs(conn *ftp.ServerConn, dir string) {
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		_ = conn.MakeDir(cur)
	}
}

func stor(conn *ftp.ServerConn, local string) error {
	file, err := os.Open(local)
	if err != nil {
		return errors.PublishError("failed to open artifact").WithCause(err).WithContext("file", local).Build()
	}
	defer func() { _ = file.Close() }()
	if err := conn.Stor(filepath.Base(local), file); err != nil {
		if hasStatus(err, statusNoFileHere) {
			return errors.PublishError("ftp server refused upload").WithCause(err).WithContext("file", local).Build()
		}
		return errors.NetworkError("ftp transfer failed").WithCause(err).WithContext("file", local).Build()
	}
	return nil
}

func ftpAddress(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, defaultFTPPort)
}

func hasStatus(err error, code int) bool {
	var tpErr *textproto.Error
	return stdErrors.As(err, &tpErr) && tpErr.Code == code
}
