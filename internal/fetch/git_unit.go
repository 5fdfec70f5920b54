package fetch

import (
	"context"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/retry"
	"git.home.luguber.info/inful/neon/internal/workspace"
)

// GitUnit fetches one component by cloning its repository.
type GitUnit struct {
	component config.Component
	retrier   *retry.Retrier
}

// NewGitUnit returns a fetch unit for the component. A nil retrier disables retries.
func NewGitUnit(c config.Component, r *retry.Retrier) *GitUnit {
	if r == nil {
		r = retry.New(retry.NewPolicy("", 0, 0, 0))
	}
	return &GitUnit{component: c, retrier: r}
}

func (u *GitUnit) Name() string { return u.component.Name }

// DependsOn lists the components that must fetch before this one.
func (u *GitUnit) DependsOn() []string { return u.component.DependsOn }

// Fetch clones the component into bc.ComponentPath(name).
func (u *GitUnit) Fetch(ctx context.Context, bc *buildcontext.Context, _ *config.Config) error {
	c := u.component
	dest := bc.ComponentPath(c.Name)
	opts, err := u.cloneOptions()
	if err != nil {
		return u.fetchError(err)
	}

	ws := workspace.NewManager(bc.BasePath())
	var head string
	err = u.retrier.Do(ctx, "clone "+c.Name, func(ctx context.Context) error {
		// a failed attempt may leave a partial tree behind
		if err := ws.RemoveSubdir(c.Name); err != nil {
			return err
		}
		repo, err := git.PlainCloneContext(ctx, dest, false, opts)
		if err != nil {
			return ClassifyGitError(err, c.URL)
		}
		if ref, err := repo.Head(); err == nil {
			head = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return u.fetchError(err)
	}

	slog.Info("Component fetched",
		logfields.Component(c.Name),
		logfields.URL(c.URL),
		logfields.Commit(head),
		logfields.Path(dest))
	return nil
}

func (u *GitUnit) cloneOptions() (*git.CloneOptions, error) {
	c := u.component
	auth, err := AuthMethod(c.Auth)
	if err != nil {
		return nil, err
	}
	opts := &git.CloneOptions{
		URL:   c.URL,
		Auth:  auth,
		Depth: c.Depth,
	}
	switch {
	case c.Branch != "":
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.Branch)
		opts.SingleBranch = true
	case c.Tag != "":
		opts.ReferenceName = plumbing.NewTagReferenceName(c.Tag)
		opts.SingleBranch = true
	}
	return opts, nil
}

// fetchError reports a failure as a FetchError naming the component; the
// underlying classification stays available as "reason".
func (u *GitUnit) fetchError(err error) error {
	return errors.FetchError("failed to fetch component").
		WithCause(err).
		WithContext("component", u.component.Name).
		WithContext("url", u.component.URL).
		WithContext("reason", string(errors.GetCategory(err))).
		Build()
}
