package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string        `arg:"" optional:"" name:"run-id" help:"Show the events of one run"`
	Limit int           `short:"n" help:"Number of runs to list" default:"20"`
	Since time.Duration `help:"Only list runs with events in this window, e.g. 72h"`
	JSON  bool          `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	path, err := root.ConfigPath(g.env())
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.History.Disabled {
		return errors.ConfigError("run history is disabled").WithContext("path", path).Build()
	}
	dbPath, err := historyPath(cfg, g.env())
	if err != nil {
		return err
	}
	store, err := history.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.RunID != "" {
		events, err := store.GetByRunID(ctx, h.RunID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errors.NewError(errors.CategoryNotFound, "no such run").WithContext("run_id", h.RunID).Build()
		}
		if h.JSON {
			return writeJSON(g.out(), eventViews(events))
		}
		printEvents(g.out(), events)
		return nil
	}

	var runs []history.RunSummary
	if h.Since > 0 {
		now := g.clock().Now()
		runs, err = history.RunsBetween(ctx, store, now.Add(-h.Since), now, h.Limit)
	} else {
		runs, err = store.RecentRuns(ctx, h.Limit)
	}
	if err != nil {
		return err
	}
	if h.JSON {
		return writeJSON(g.out(), runs)
	}
	printRuns(g.out(), runs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventView keeps the stored payload as raw JSON in the output.
type eventView struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func eventViews(events []history.Event) []eventView {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{Type: e.Type, Timestamp: e.Timestamp, Payload: e.Payload, Metadata: e.Metadata})
	}
	return views
}

func printRuns(w io.Writer, runs []history.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tDATE\tSTARTED\tSTATUS\tDURATION\tFAILED")
	for _, r := range runs {
		failed := "-"
		if n := len(r.FailedUnits); n > 0 {
			failed = fmt.Sprintf("%d", n)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, orDash(r.Date), r.StartedAt.Local().Format(time.DateTime), r.Status, r.Duration, failed)
	}
	_ = tw.Flush()
}

func printEvents(w io.Writer, events []history.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tEVENT\tPAYLOAD")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.Type, e.Payload)
	}
	_ = tw.Flush()
}
