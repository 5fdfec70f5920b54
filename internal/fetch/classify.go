package fetch

import (
	stdErrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors so the
// retrier can tell transient transport failures from permanent ones.
func ClassifyGitError(err error, url string) error {
	if err == nil {
		return nil
	}
	if errors.IsClassified(err) {
		return err
	}

	builder := errors.FetchError("git clone failed").
		WithCause(err).
		WithContext("url", url)

	l := strings.ToLower(err.Error())
	switch {
	case stdErrors.Is(err, transport.ErrAuthenticationRequired),
		stdErrors.Is(err, transport.ErrAuthorizationFailed),
		strings.Contains(l, "authentication failed"),
		strings.Contains(l, "invalid credentials"):
		builder.WithCategory(errors.CategoryAuth).UserAction()
	case stdErrors.Is(err, transport.ErrRepositoryNotFound),
		stdErrors.Is(err, plumbing.ErrReferenceNotFound),
		strings.Contains(l, "couldn't find remote ref"),
		strings.Contains(l, "not found"):
		builder.WithCategory(errors.CategoryNotFound)
	case strings.Contains(l, "rate limit"), strings.Contains(l, "too many requests"):
		builder.WithCategory(errors.CategoryNetwork).RateLimit()
	case strings.Contains(l, "connection reset"),
		strings.Contains(l, "connection refused"),
		strings.Contains(l, "remote hung up"),
		strings.Contains(l, "timeout"),
		strings.Contains(l, "no route to host"),
		strings.Contains(l, "unexpected eof"):
		builder.WithCategory(errors.CategoryNetwork).Retryable()
	case strings.Contains(l, "unsupported protocol"), strings.Contains(l, "protocol not supported"):
		builder.WithCategory(errors.CategoryConfig)
	}
	return builder.Build()
}
