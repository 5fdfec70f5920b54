// Package buildcontext computes the identity of one nightly run: the UTC build
// date, revision, version string and the directory layout derived from them.
//
// A Context is created once per run and passed by pointer to every fetch unit,
// the build driver, each publish target and the cleanup stage.
package buildcontext

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// DateLayout is the format of the build date and of the date directories under the root.
const DateLayout = "20060102"

// Well-known subdirectories of the base path.
const (
	InstallDir   = "install"
	ArtifactsDir = "artifacts"
	LogsDir      = "logs"
)

// Env is the subset of the process environment the context reads.
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the real process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is a fixed environment, mostly useful in tests.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Options carries the configuration-derived inputs of a context.
type Options struct {
	RootDir    string
	Revision   string
	AppVersion string
	ConfigPath string
	RunID      string
}

// Context is the immutable build identity of one run.
type Context struct {
	date       string
	revision   string
	rootPath   string
	basePath   string
	appVersion string
	configPath string
	runID      string
	started    time.Time
}

// New derives the build context for the given environment and instant.
// HOME must be set to an absolute path.
func New(env Env, now time.Time, opts Options) (*Context, error) {
	home, ok := env.LookupEnv("HOME")
	if !ok || home == "" {
		return nil, errors.EnvironmentError("HOME is not set; cannot resolve build root").Build()
	}
	if !filepath.IsAbs(home) {
		return nil, errors.EnvironmentError("HOME must be an absolute path").
			WithContext("home", home).
			Build()
	}

	date := now.UTC().Format(DateLayout)
	root := filepath.Join(home, opts.RootDir)
	return &Context{
		date:       date,
		revision:   opts.Revision,
		rootPath:   root,
		basePath:   filepath.Join(root, date),
		appVersion: opts.AppVersion,
		configPath: opts.ConfigPath,
		runID:      opts.RunID,
		started:    now.UTC(),
	}, nil
}

func (c *Context) Date() string       { return c.date }
func (c *Context) Revision() string   { return c.revision }
func (c *Context) RootPath() string   { return c.rootPath }
func (c *Context) BasePath() string   { return c.basePath }
func (c *Context) AppVersion() string { return c.appVersion }
func (c *Context) ConfigPath() string { return c.configPath }
func (c *Context) RunID() string      { return c.runID }
func (c *Context) Started() time.Time { return c.started }

// ComponentPath is the fetch destination of the named component.
func (c *Context) ComponentPath(name string) string {
	return filepath.Join(c.basePath, name)
}

// InstallPath is the prefix build steps install into.
func (c *Context) InstallPath() string { return filepath.Join(c.basePath, InstallDir) }

// ArtifactsPath holds packaged build output.
func (c *Context) ArtifactsPath() string { return filepath.Join(c.basePath, ArtifactsDir) }

// LogsPath holds captured build output.
func (c *Context) LogsPath() string { return filepath.Join(c.basePath, LogsDir) }
