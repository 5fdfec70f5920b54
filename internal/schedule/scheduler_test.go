package schedule

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

var epoch = time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, run RunFunc) (*Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	s, err := New(run, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s, clock
}

func TestScheduler_NextRunFollowsCron(t *testing.T) {
	s, _ := newScheduler(t, func(context.Context) error { return nil })
	require.NoError(t, s.Schedule(config.DefaultCron))
	s.Start()

	require.Eventually(t, func() bool {
		next, err := s.NextRun()
		return err == nil && next.Equal(time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC))
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Schedule("30 4 * * *"))
	assert.Equal(t, "30 4 * * *", s.Cron())
	require.Eventually(t, func() bool {
		next, err := s.NextRun()
		return err == nil && next.Equal(time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_InvalidCron(t *testing.T) {
	s, _ := newScheduler(t, func(context.Context) error { return nil })
	err := s.Schedule("every night")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = s.NextRun()
	assert.Error(t, err)
	assert.Error(t, s.RunNow())
}

func TestScheduler_RunNow(t *testing.T) {
	var runs atomic.Int32
	s, _ := newScheduler(t, func(ctx context.Context) error {
		runs.Add(1)
		return ctx.Err()
	})
	require.NoError(t, s.Schedule(config.DefaultCron))
	s.Start()

	require.NoError(t, s.RunNow())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("ftp_host: a\n"), 0o600))

	clock := clockwork.NewFakeClockAt(epoch)
	var got atomic.Pointer[config.Config]
	cw, err := NewConfigWatcher(path, clock, func(cfg *config.Config) { got.Store(cfg) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = cw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, cw.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("ftp_host: b\nschedule:\n  cron: \"0 3 * * *\"\n"), 0o600))
	require.Eventually(t, func() bool {
		clock.Advance(DefaultDebounce)
		return got.Load() != nil
	}, 5*time.Second, 20*time.Millisecond)

	cfg := got.Load()
	assert.Equal(t, "0 3 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "b", cfg.GetOr("ftp_host", ""))
}

func TestConfigWatcher_IgnoresInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("schedule: [broken\n"), 0o600))

	var calls int
	cw, err := NewConfigWatcher(path, clockwork.NewFakeClock(), func(*config.Config) { calls++ })
	require.NoError(t, err)
	t.Cleanup(func() { _ = cw.Close() })

	cw.reload()
	assert.Zero(t, calls)
}
