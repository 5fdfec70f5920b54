// Package retry backs off and retries operations that failed with a
// transient classified error.
package retry

import (
	"time"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// Policy is the backoff schedule shared by git fetches and uploads.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy waits 1s, 2s between three attempts (linear, capped at 30s).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy overlays the given settings on DefaultPolicy. Non-positive
// durations, a negative retry count and an unknown mode keep the default;
// Initial never exceeds Max.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds the policy of the retry section.
func FromConfig(rc config.RetryConfig) Policy {
	n := -1
	if rc.MaxRetries != nil {
		n = *rc.MaxRetries
	}
	return NewPolicy(rc.Mode, rc.Initial, rc.Max, n)
}

// Delay is the wait before retry n (1-based). n <= 0 yields 0.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := p.Initial
	switch p.Mode {
	case config.RetryBackoffFixed:
	case config.RetryBackoffExponential:
		// past 62 doublings any positive Initial overflows
		if n > 62 {
			return p.Max
		}
		d = p.Initial << (n - 1)
		if d <= 0 {
			return p.Max
		}
	default:
		d = p.Initial * time.Duration(n)
	}
	return min(d, p.Max)
}

// Schedule lists the delays before each retry in order.
func (p Policy) Schedule() []time.Duration {
	out := make([]time.Duration, p.MaxRetries)
	for i := range out {
		out[i] = p.Delay(i + 1)
	}
	return out
}

// Validate rejects policies that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ValidationError("retry initial delay must be positive").WithContext("initial", p.Initial).Build()
	case p.Max <= 0:
		return errors.ValidationError("retry max delay must be positive").WithContext("max", p.Max).Build()
	case p.MaxRetries < 0:
		return errors.ValidationError("retry count cannot be negative").WithContext("max_retries", p.MaxRetries).Build()
	}
	return nil
}
