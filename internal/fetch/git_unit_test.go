package fetch

import (
	"context"
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/retry"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	h, err := wt.Commit("add "+name, &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}})
	require.NoError(t, err)
	return h
}

// upstream creates a local repository with a default branch, a "stable"
// branch and a "v1.0" tag.
func upstream(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "taglib.git")
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	head := commitFile(t, repo, dir, "CMakeLists.txt", "project(taglib)\n")
	_, err = repo.CreateTag("v1.0", head, nil)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("stable"), Create: true}))
	commitFile(t, repo, dir, "STABLE", "yes\n")
	return dir
}

func newContext(t *testing.T) *buildcontext.Context {
	t.Helper()
	bc, err := buildcontext.New(buildcontext.MapEnv{"HOME": t.TempDir()}, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		buildcontext.Options{RootDir: "nightly-root", Revision: "1"})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(bc.BasePath(), 0o750))
	return bc
}

func TestGitUnit_ClonesIntoComponentPath(t *testing.T) {
	src := upstream(t)
	bc := newContext(t)

	// leftovers from an earlier same-day run are replaced
	stale := filepath.Join(bc.ComponentPath("taglib"), "stale.o")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o750))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	u := NewGitUnit(config.Component{Name: "taglib", URL: src}, nil)
	assert.Equal(t, "taglib", u.Name())
	require.NoError(t, u.Fetch(context.Background(), bc, nil))

	assert.FileExists(t, filepath.Join(bc.ComponentPath("taglib"), "CMakeLists.txt"))
	assert.NoFileExists(t, stale)
}

func TestGitUnit_BranchAndTag(t *testing.T) {
	src := upstream(t)

	t.Run("branch", func(t *testing.T) {
		bc := newContext(t)
		u := NewGitUnit(config.Component{Name: "taglib", URL: src, Branch: "stable"}, nil)
		require.NoError(t, u.Fetch(context.Background(), bc, nil))
		assert.FileExists(t, filepath.Join(bc.ComponentPath("taglib"), "STABLE"))
	})

	t.Run("tag", func(t *testing.T) {
		bc := newContext(t)
		u := NewGitUnit(config.Component{Name: "taglib", URL: src, Tag: "v1.0"}, nil)
		require.NoError(t, u.Fetch(context.Background(), bc, nil))
		assert.FileExists(t, filepath.Join(bc.ComponentPath("taglib"), "CMakeLists.txt"))
		assert.NoFileExists(t, filepath.Join(bc.ComponentPath("taglib"), "STABLE"))
	})
}

func TestGitUnit_MissingRepositoryIsNotRetried(t *testing.T) {
	bc := newContext(t)
	attempts := 0
	r := retry.New(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3))
	r.OnRetry = func(string, int, error) { attempts++ }

	u := NewGitUnit(config.Component{Name: "strigi", URL: filepath.Join(t.TempDir(), "missing.git")}, r)
	err := u.Fetch(context.Background(), bc, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFetch))
	assert.Equal(t, 0, attempts)

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	component, _ := ce.Context().GetString("component")
	assert.Equal(t, "strigi", component)
}

func TestGitUnit_DependsOn(t *testing.T) {
	u := NewGitUnit(config.Component{Name: "kdelibs", URL: "x", DependsOn: []string{"qtcopy", "strigi"}}, nil)
	assert.Equal(t, []string{"qtcopy", "strigi"}, u.DependsOn())
}

func TestAuthMethod(t *testing.T) {
	m, err := AuthMethod(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = AuthMethod(&config.AuthConfig{Type: config.AuthTypeToken, Token: "s3cr3t"})
	require.NoError(t, err)
	assert.Equal(t, &http.BasicAuth{Username: "token", Password: "s3cr3t"}, m)

	m, err = AuthMethod(&config.AuthConfig{Type: config.AuthTypeBasic, Username: "neon", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, &http.BasicAuth{Username: "neon", Password: "pw"}, m)

	for name, cfg := range map[string]*config.AuthConfig{
		"token without token": {Type: config.AuthTypeToken},
		"basic without pass":  {Type: config.AuthTypeBasic, Username: "neon"},
		"ssh missing key":     {Type: config.AuthTypeSSH, KeyPath: filepath.Join(t.TempDir(), "id_none")},
		"unknown":             {Type: "kerberos"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := AuthMethod(cfg)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryAuth))
		})
	}
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		err       error
		category  errors.ErrorCategory
		transient bool
	}{
		{transport.ErrAuthenticationRequired, errors.CategoryAuth, false},
		{transport.ErrRepositoryNotFound, errors.CategoryNotFound, false},
		{stdErrors.New("read tcp: connection reset by peer"), errors.CategoryNetwork, true},
		{stdErrors.New("dial tcp: i/o timeout"), errors.CategoryNetwork, true},
		{stdErrors.New("429 too many requests"), errors.CategoryNetwork, true},
		{stdErrors.New("unsupported protocol scheme \"svn\""), errors.CategoryConfig, false},
		{stdErrors.New("object corrupt"), errors.CategoryFetch, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := ClassifyGitError(tt.err, "https://example.org/repo.git")
			assert.Equal(t, tt.category, errors.GetCategory(err))
			assert.Equal(t, tt.transient, retry.IsTransient(err))
		})
	}
	assert.NoError(t, ClassifyGitError(nil, ""))
}
