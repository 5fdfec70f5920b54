package workspace

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
)

// LockFileName is created in the base path for the duration of a run.
const LockFileName = ".neon.lock"

// Manager handles the base path of one run.
type Manager struct {
	basePath string
	locked   bool
}

// NewManager returns a manager for the given base path.
func NewManager(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Create ensures the base path and its fixed subdirectories exist.
func (m *Manager) Create(subdirs ...string) error {
	if err := os.MkdirAll(m.basePath, 0o750); err != nil {
		return errors.EnvironmentError("failed to create base path").
			WithCause(err).
			WithContext("path", m.basePath).
			Build()
	}
	for _, name := range subdirs {
		if _, err := m.CreateSubdir(name); err != nil {
			return err
		}
	}
	slog.Debug("Prepared base path", logfields.Path(m.basePath))
	return nil
}

// CreateSubdir creates a subdirectory of the base path.
func (m *Manager) CreateSubdir(name string) (string, error) {
	subdir, err := m.subdir(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", errors.FileSystemError("failed to create subdirectory").
			WithCause(err).
			WithContext("path", subdir).
			Build()
	}
	return subdir, nil
}

// RemoveSubdir deletes a subdirectory of the base path; a missing one is not an error.
func (m *Manager) RemoveSubdir(name string) error {
	subdir, err := m.subdir(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(subdir); err != nil {
		return errors.FileSystemError("failed to remove subdirectory").
			WithCause(err).
			WithContext("path", subdir).
			Build()
	}
	return nil
}

func (m *Manager) subdir(name string) (string, error) {
	clean := filepath.Clean(name)
	if name == "" || clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.ValidationError("invalid subdirectory name").
			WithContext("name", name).
			Build()
	}
	return filepath.Join(m.basePath, clean), nil
}

// Lock acquires the run lock for the base path. The lock file records the
// holder's run id and pid so a collision names the run in progress. A lock
// left behind by a process that no longer exists is removed and the lock is
// taken over.
func (m *Manager) Lock(runID string) error {
	lockPath := filepath.Join(m.basePath, LockFileName)
	err := createLock(lockPath, runID)
	if err != nil && stdErrors.Is(err, os.ErrExist) {
		holder := readHolder(lockPath)
		if pid, ok := holderPID(holder); ok && !processAlive(pid) {
			slog.Warn("Removing stale run lock",
				logfields.Path(lockPath),
				slog.String("holder", holder),
				slog.Int("pid", pid))
			if rerr := os.Remove(lockPath); rerr != nil && !stdErrors.Is(rerr, os.ErrNotExist) {
				return errors.EnvironmentError("failed to remove stale run lock").
					WithCause(rerr).
					WithContext("lock", lockPath).
					WithContext("holder", holder).
					Build()
			}
			err = createLock(lockPath, runID)
		}
	}
	if err != nil {
		if stdErrors.Is(err, os.ErrExist) {
			return errors.EnvironmentError("run already in progress").
				WithCause(err).
				WithContext("lock", lockPath).
				WithContext("holder", readHolder(lockPath)).
				Build()
		}
		return errors.EnvironmentError("failed to acquire run lock").
			WithCause(err).
			WithContext("lock", lockPath).
			Build()
	}
	m.locked = true
	slog.Debug("Acquired run lock", logfields.Path(lockPath), logfields.RunID(runID))
	return nil
}

func createLock(lockPath, runID string) error {
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%s pid=%d\n", runID, os.Getpid())
	cerr := f.Close()
	if err := stdErrors.Join(werr, cerr); err != nil {
		_ = os.Remove(lockPath)
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

func readHolder(lockPath string) string {
	holder, _ := os.ReadFile(lockPath)
	return strings.TrimSpace(string(holder))
}

// holderPID extracts the pid=N field written by createLock.
func holderPID(holder string) (int, bool) {
	for _, field := range strings.Fields(holder) {
		v, ok := strings.CutPrefix(field, "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(v)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}

// processAlive reports whether pid names a running process. Only ESRCH counts
// as dead; EPERM means the process exists under another user.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return !stdErrors.Is(err, syscall.ESRCH)
}

// Unlock releases a lock acquired by Lock. It is a no-op when not held.
func (m *Manager) Unlock() error {
	if !m.locked {
		return nil
	}
	lockPath := filepath.Join(m.basePath, LockFileName)
	if err := os.Remove(lockPath); err != nil && !stdErrors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	m.locked = false
	return nil
}
