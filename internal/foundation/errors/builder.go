package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts an error of category with that category's severity and
// retry defaults.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	t := category.traits()
	return &ErrorBuilder{
		category: category,
		severity: t.severity,
		retry:    t.retry,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCategory recategorizes the error, keeping severity and retry choices.
func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithCause sets the underlying error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.cause = cause
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// RateLimit sets the retry strategy to rate limit.
func (b *ErrorBuilder) RateLimit() *ErrorBuilder {
	return b.WithRetry(RetryRateLimit)
}

// UserAction sets the retry strategy to require user action.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	return b.WithRetry(RetryUserAction)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Constructors for the run taxonomy. Severity and retry follow the category.

func ConfigError(message string) *ErrorBuilder      { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder  { return NewError(CategoryValidation, message) }
func EnvironmentError(message string) *ErrorBuilder { return NewError(CategoryEnvironment, message) }
func AuthError(message string) *ErrorBuilder        { return NewError(CategoryAuth, message) }
func NetworkError(message string) *ErrorBuilder     { return NewError(CategoryNetwork, message) }
func FetchError(message string) *ErrorBuilder       { return NewError(CategoryFetch, message) }
func BuildError(message string) *ErrorBuilder       { return NewError(CategoryBuild, message) }
func PublishError(message string) *ErrorBuilder     { return NewError(CategoryPublish, message) }
func CleanupError(message string) *ErrorBuilder     { return NewError(CategoryCleanup, message) }
func FileSystemError(message string) *ErrorBuilder  { return NewError(CategoryFileSystem, message) }
func HistoryError(message string) *ErrorBuilder     { return NewError(CategoryHistory, message) }
func CanceledError(message string) *ErrorBuilder    { return NewError(CategoryCanceled, message) }
func InternalError(message string) *ErrorBuilder    { return NewError(CategoryInternal, message) }
