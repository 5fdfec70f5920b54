package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	Env    buildcontext.Env
	Clock  clockwork.Clock
}

// NewGlobal returns the production globals writing to stdout.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Out: os.Stdout, Env: buildcontext.OSEnv{}, Clock: clockwork.NewRealClock()}
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) env() buildcontext.Env {
	if g == nil || g.Env == nil {
		return buildcontext.OSEnv{}
	}
	return g.Env
}

func (g *Global) clock() clockwork.Clock {
	if g == nil || g.Clock == nil {
		return clockwork.NewRealClock()
	}
	return g.Clock
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default ~/.neonrc)" env:"NEON_CONFIG" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Run the nightly pipeline once"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Plan     PlanCmd     `cmd:"" help:"Show what a run would fetch, build and publish"`
	Clean    CleanCmd    `cmd:"" help:"Apply the retention policy to old date directories"`
	History  HistoryCmd  `cmd:"" help:"List recorded runs"`
	Schedule ScheduleCmd `cmd:"" help:"Run as a daemon triggering nightly runs on a cron schedule"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honors -v first, then NEON_LOG_LEVEL (debug|info|warn|error).
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NEON_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigPath resolves the configuration file, defaulting to <home>/.neonrc.
func (c *CLI) ConfigPath(env buildcontext.Env) (string, error) {
	if c.Config != "" {
		return c.Config, nil
	}
	return config.DefaultPath(env.LookupEnv)
}

// historyPath is history.path or <home>/<root_dir>/history.db. The file sits
// beside the date directories so retention never removes it. Without an
// absolute HOME there is no default location.
func historyPath(cfg *config.Config, env buildcontext.Env) (string, error) {
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	home, ok := env.LookupEnv("HOME")
	if !ok || home == "" || !filepath.IsAbs(home) {
		return "", errors.EnvironmentError("cannot locate run history without an absolute HOME").
			WithContext("home", home).
			Build()
	}
	return filepath.Join(home, cfg.RootDir, "history.db"), nil
}
