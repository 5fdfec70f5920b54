package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/planner"
	"git.home.luguber.info/inful/neon/internal/retry"
)

// PlanCmd implements the 'plan' command. It loads and validates the
// configuration and prints what a run would do without touching the disk.
type PlanCmd struct{}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	path, err := root.ConfigPath(g.env())
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	bc, err := pipeline.DefaultContextFactory(g.env())(cfg, "plan", g.clock().Now())
	if err != nil {
		return err
	}
	plan, err := planner.New(nil).Plan(cfg, bc)
	if err != nil {
		return err
	}
	PrintPlan(g.out(), cfg, bc, plan)
	return nil
}

// PrintPlan renders the units of plan with their placeholders expanded.
func PrintPlan(w io.Writer, cfg *config.Config, bc *buildcontext.Context, plan *pipeline.Plan) {
	_, _ = fmt.Fprintf(w, "date %s  base %s\n\n", bc.Date(), bc.BasePath())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FETCH\tSOURCE\tDEPENDS ON")
	for _, u := range plan.FetchUnits {
		src := "-"
		if c, ok := cfg.Component(u.Name()); ok {
			src = c.URL
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Name(), src, dependsOn(u))
	}
	_ = tw.Flush()

	if plan.Builder != nil {
		_, _ = fmt.Fprintf(w, "\nbuild %s (depends on %s)\n", plan.Builder.Name(), dependsOn(plan.Builder))
		if cfg.Build != nil {
			extra := map[string]string{"source": bc.ComponentPath(cfg.Build.Component)}
			for i, step := range cfg.Build.Steps {
				_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, strings.Join(bc.Expand(step, extra), " "))
			}
		}
	}

	if len(cfg.Publish) > 0 {
		_, _ = fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "PUBLISH\tKIND\tDESTINATION")
		for _, t := range cfg.Publish {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Kind, destination(bc, t))
		}
		_ = tw.Flush()
	}

	policy := retry.FromConfig(cfg.Retry)
	_, _ = fmt.Fprintf(w, "\nretry %s %v\n", policy.Mode, policy.Schedule())
	_, _ = fmt.Fprintf(w, "retention keep %d  prune sources %t\n", cfg.Retention.KeepDays(), cfg.Retention.PruneSources)
}

func dependsOn(v any) string {
	d, ok := v.(pipeline.Dependent)
	if !ok || len(d.DependsOn()) == 0 {
		return "-"
	}
	return strings.Join(d.DependsOn(), ",")
}

func destination(bc *buildcontext.Context, t config.PublishTarget) string {
	switch t.Kind {
	case config.PublishKindFile:
		return bc.Expand([]string{t.Path}, nil)[0]
	case config.PublishKindFTP:
		return t.Address + t.RemoteDir
	case config.PublishKindDistro:
		return strings.Join(t.Command, " ")
	case config.PublishKindNATS:
		return t.URL + " " + t.Subject
	default:
		return "-"
	}
}
