package config

import "git.home.luguber.info/inful/neon/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffModes = normalization.NewEnum("retry mode", RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential).
	Alias("constant", RetryBackoffFixed)

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning "" for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	m, _ := retryBackoffModes.Lookup(raw)
	return m
}
