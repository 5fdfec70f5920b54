package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/metrics"
	"git.home.luguber.info/inful/neon/internal/schedule"
)

// ScheduleCmd implements the 'schedule' command: a daemon triggering a run
// on every cron match of schedule.cron until interrupted.
type ScheduleCmd struct {
	RunNow   bool   `name:"run-now" help:"Trigger one run immediately after start"`
	Listen   string `help:"Serve Prometheus metrics on this address (overrides metrics.listen)"`
	Location string `help:"Time zone for the cron expression" default:"Local"`
}

func (s *ScheduleCmd) Run(g *Global, root *CLI) error {
	path, err := root.ConfigPath(g.env())
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return errors.ValidationError("unknown time zone").WithCause(err).WithContext("location", s.Location).Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sess := openSession(cfg, g.env(), g.clock())
	defer sess.close()

	// Each trigger reloads the file so edits apply to the next run.
	runner := sess.runner(nil)
	run := func(runCtx context.Context) error {
		report, err := runner.Run(runCtx, path, sess.planner)
		PrintReport(g.out(), report)
		textfile := ""
		if current, lerr := config.Load(path); lerr == nil {
			textfile = current.Metrics.Textfile
		}
		sess.exportMetrics(textfile)
		return err
	}

	sched, err := schedule.New(run, schedule.WithLocation(loc))
	if err != nil {
		return err
	}
	if err := sched.Schedule(cfg.Schedule.Cron); err != nil {
		return err
	}

	watcher, err := schedule.NewConfigWatcher(path, nil, func(next *config.Config) {
		if err := sched.Schedule(next.Schedule.Cron); err != nil {
			slog.Warn("Keeping previous schedule", logfields.Error(err))
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	listen := s.Listen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}
	if listen != "" {
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return errors.EnvironmentError("failed to listen for metrics").WithCause(err).WithContext("address", listen).Build()
		}
		reg := sess.recorder.Registry()
		metrics.RegisterRuntimeCollectors(reg)
		go func() {
			if err := metrics.Serve(ctx, ln, reg); err != nil {
				slog.Error("Metrics server stopped", logfields.Error(err))
			}
		}()
	}

	sched.Start()
	if next, err := sched.NextRun(); err == nil {
		_, _ = fmt.Fprintf(g.out(), "next run %s (%s)\n", next.Format(time.RFC3339), sched.Cron())
	}
	if s.RunNow {
		if err := sched.RunNow(); err != nil {
			slog.Warn("Immediate run not started", logfields.Error(err))
		}
	}

	<-ctx.Done()
	slog.Info("Shutting down scheduler")
	return sched.Stop()
}
