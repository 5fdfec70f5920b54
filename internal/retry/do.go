package retry

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
)

// Retrier runs an operation under a Policy, sleeping on the supplied clock
// between attempts. Only errors whose classification marks them transient are
// retried; anything else is returned immediately.
type Retrier struct {
	Policy Policy
	Clock  clockwork.Clock
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(op string, attempt int, err error)
}

// New returns a Retrier on the real clock.
func New(p Policy) *Retrier {
	return &Retrier{Policy: p, Clock: clockwork.NewRealClock()}
}

// Do calls fn until it succeeds, returns a permanent error, the retry budget is
// exhausted, or ctx is done. op names the operation in log lines.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt >= r.Policy.MaxRetries {
			return err
		}
		delay := r.Policy.Delay(attempt + 1)
		if r.OnRetry != nil {
			r.OnRetry(op, attempt+1, err)
		}
		slog.Warn("Transient failure, retrying",
			slog.String("op", op),
			logfields.Attempt(attempt+1),
			slog.Duration("delay", delay),
			logfields.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}
	}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	if ce, ok := errors.AsClassified(err); ok {
		return ce.IsTransient()
	}
	return false
}
