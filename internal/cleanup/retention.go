// Package cleanup reclaims disk space under the nightly root once a run has
// published its artifact.
package cleanup

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/workspace"
)

// Retention keeps the newest date directories under the root and optionally
// drops the current run's fetched source trees. Settings are read from the
// retention section of the configuration on every call.
type Retention struct{}

// NewRetention returns the cleanup stage implementation.
func NewRetention() *Retention { return &Retention{} }

// Clean applies the retention policy for the run described by bc.
func (r *Retention) Clean(ctx context.Context, bc *buildcontext.Context, cfg *config.Config) error {
	keep := config.DefaultKeep
	var prune bool
	if cfg != nil {
		keep = cfg.Retention.KeepDays()
		prune = cfg.Retention.PruneSources
	}

	var errs []error
	if prune {
		if err := pruneSources(ctx, bc, cfg); err != nil {
			errs = append(errs, err)
		}
	}
	if keep > 0 {
		if _, err := Prune(ctx, bc.RootPath(), bc.Date(), keep); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.CleanupError("retention failed").
			WithCause(stdErrors.Join(errs...)).
			WithContext("root", bc.RootPath()).
			Build()
	}
	return nil
}

// Prune removes date directories under root beyond the newest keep, never
// touching current. Entries whose name is not a YYYYMMDD date are left alone.
// It returns the removed directories, oldest first.
func Prune(ctx context.Context, root, current string, keep int) ([]string, error) {
	expired, err := Expired(root, current, keep)
	if err != nil {
		return nil, err
	}

	var (
		removed []string
		errs    []error
	)
	for _, d := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		dir := filepath.Join(root, d)
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, errors.WrapError(err, errors.CategoryFileSystem, "failed to remove date directory").
				WithContext("path", dir).
				Build())
			continue
		}
		slog.Info("Removed expired build tree", logfields.Date(d), logfields.Path(dir))
		removed = append(removed, dir)
	}
	return removed, stdErrors.Join(errs...)
}

// Expired returns the date directory names Prune would remove, oldest first.
// keep is raised to one so the newest tree always survives.
func Expired(root, current string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	dates, err := DateDirs(root)
	if err != nil {
		return nil, err
	}
	kept := 0
	var expired []string
	for _, d := range slices.Backward(dates) {
		if d == current || kept < keep {
			kept++
			continue
		}
		expired = append(expired, d)
	}
	slices.Reverse(expired)
	return expired, nil
}

// DateDirs lists the date-stamped directories under root in ascending order.
// A missing root yields no entries.
func DateDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read nightly root").
			WithContext("path", root).
			Build()
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() && isDate(e.Name()) {
			dates = append(dates, e.Name())
		}
	}
	slices.Sort(dates)
	return dates, nil
}

func isDate(name string) bool {
	if len(name) != len(buildcontext.DateLayout) {
		return false
	}
	_, err := time.Parse(buildcontext.DateLayout, name)
	return err == nil
}

// pruneSources removes the fetched component trees of the current run. The
// install tree, artifacts and logs stay.
func pruneSources(ctx context.Context, bc *buildcontext.Context, cfg *config.Config) error {
	ws := workspace.NewManager(bc.BasePath())
	var errs []error
	for _, c := range cfg.Components {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ws.RemoveSubdir(c.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Debug("Pruned source tree", logfields.Component(c.Name))
	}
	return stdErrors.Join(errs...)
}
