package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/pipeline"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Textfile string `name:"metrics-textfile" help:"Write Prometheus metrics to this file after the run (overrides metrics.textfile)" type:"path"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	path, err := root.ConfigPath(g.env())
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := RunOnce(ctx, g, path, r.Textfile)
	PrintReport(g.out(), report)
	return err
}

// RunOnce performs one nightly run for the configuration at path. The
// configuration is loaded once up front so history and metrics settings apply
// to the run itself; a load failure is still reported through the pipeline.
func RunOnce(ctx context.Context, g *Global, path, textfile string) (*pipeline.Report, error) {
	cfg, loadErr := config.Load(path)
	s := openSession(cfg, g.env(), g.clock())
	defer s.close()

	runner := s.runner(func(string) (*config.Config, error) { return cfg, loadErr })
	report, err := runner.Run(ctx, path, s.planner)

	if textfile == "" && cfg != nil {
		textfile = cfg.Metrics.Textfile
	}
	s.exportMetrics(textfile)
	return report, err
}

// PrintReport renders the per-unit outcomes of a run.
func PrintReport(w io.Writer, r *pipeline.Report) {
	if r == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "run %s  date %s  state %s  outcome %s  (%s)\n",
		r.RunID, orDash(r.Date), r.State, r.Outcome, r.Duration().Round(1e6))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STAGE\tUNIT\tRESULT\tDURATION")
	for _, o := range r.Outcomes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Stage, orDash(o.Name), o.Result, o.Duration.Round(1e6))
	}
	_ = tw.Flush()
	if r.Artifact != nil && r.Artifact.Archive != "" {
		_, _ = fmt.Fprintf(w, "artifact %s\n", r.Artifact.Archive)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
