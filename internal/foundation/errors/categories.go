package errors

import "maps"

// ErrorCategory names the failure class of a run. Each category carries its
// process exit code and the severity and retry defaults of errors built for it.
type ErrorCategory string

const (
	CategoryConfig      ErrorCategory = "config"
	CategoryValidation  ErrorCategory = "validation"
	CategoryEnvironment ErrorCategory = "environment"
	CategoryAuth        ErrorCategory = "auth"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryFetch       ErrorCategory = "fetch"
	CategoryNetwork     ErrorCategory = "network"
	CategoryBuild       ErrorCategory = "build"
	CategoryPublish     ErrorCategory = "publish"
	CategoryCleanup     ErrorCategory = "cleanup"
	CategoryFileSystem  ErrorCategory = "filesystem"
	CategoryHistory     ErrorCategory = "history"
	CategoryCanceled    ErrorCategory = "canceled"
	CategoryInternal    ErrorCategory = "internal"
)

// ErrorSeverity indicates whether a failure stops the run.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// RetryStrategy tells retry loops whether another attempt can succeed.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryRateLimit  RetryStrategy = "rate_limit"
	RetryUserAction RetryStrategy = "user"
)

// exitCodeOther is used for errors outside the taxonomy.
const exitCodeOther = 1

type categoryTraits struct {
	exitCode int
	severity ErrorSeverity
	retry    RetryStrategy
}

var traits = map[ErrorCategory]categoryTraits{
	CategoryValidation:  {2, SeverityFatal, RetryNever},
	CategoryAuth:        {5, SeverityError, RetryUserAction},
	CategoryEnvironment: {6, SeverityFatal, RetryNever},
	CategoryConfig:      {7, SeverityFatal, RetryNever},
	CategoryFetch:       {8, SeverityError, RetryNever},
	CategoryNetwork:     {8, SeverityError, RetryBackoff},
	CategoryNotFound:    {8, SeverityError, RetryNever},
	CategoryPublish:     {9, SeverityError, RetryNever},
	CategoryInternal:    {10, SeverityFatal, RetryNever},
	CategoryBuild:       {11, SeverityFatal, RetryNever},
	CategoryFileSystem:  {11, SeverityError, RetryBackoff},
	CategoryCleanup:     {12, SeverityError, RetryNever},
	CategoryHistory:     {12, SeverityWarning, RetryNever},
	CategoryCanceled:    {130, SeverityError, RetryNever},
}

func (c ErrorCategory) traits() categoryTraits {
	if t, ok := traits[c]; ok {
		return t
	}
	return categoryTraits{exitCodeOther, SeverityError, RetryNever}
}

// ExitCode is the process status neon exits with for a failure of this category.
func (c ErrorCategory) ExitCode() int { return c.traits().exitCode }

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value, allocating the map when nil.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, ok := c[key]
	return value, ok
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context holding c overlaid with other.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	out := make(ErrorContext, len(c)+len(other))
	maps.Copy(out, c)
	maps.Copy(out, other)
	return out
}
