package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyDate       = "date"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyComponent  = "component"
	KeyTarget     = "target"
	KeyKind       = "kind"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyCommit     = "commit"
	KeyArtifact   = "artifact"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Date(d string) slog.Attr         { return slog.String(KeyDate, d) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }
func Target(name string) slog.Attr    { return slog.String(KeyTarget, name) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
