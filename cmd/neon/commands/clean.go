package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/neon/internal/cleanup"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Keep   int  `help:"Number of date directories to keep (default: retention.keep)" default:"-1"`
	DryRun bool `name:"dry-run" help:"List expired directories without removing them"`
}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	path, err := root.ConfigPath(g.env())
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	bc, err := pipeline.DefaultContextFactory(g.env())(cfg, "clean", g.clock().Now())
	if err != nil {
		return err
	}

	keep := c.Keep
	if keep < 0 {
		keep = cfg.Retention.KeepDays()
	}
	if keep == 0 && c.Keep < 0 {
		_, _ = fmt.Fprintln(g.out(), "retention disabled (retention.keep is 0)")
		return nil
	}

	if c.DryRun {
		expired, err := cleanup.Expired(bc.RootPath(), bc.Date(), keep)
		if err != nil {
			return err
		}
		for _, d := range expired {
			_, _ = fmt.Fprintf(g.out(), "would remove %s\n", filepath.Join(bc.RootPath(), d))
		}
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	removed, err := cleanup.Prune(ctx, bc.RootPath(), bc.Date(), keep)
	for _, d := range removed {
		_, _ = fmt.Fprintf(g.out(), "removed %s\n", d)
	}
	return err
}
