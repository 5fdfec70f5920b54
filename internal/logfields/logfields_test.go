package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "abc", RunID("abc")},
		{"Date", KeyDate, "20240305", Date("20240305")},
		{"Stage", KeyStage, "fetch", Stage("fetch")},
		{"State", KeyState, "FETCHING", State("FETCHING")},
		{"Component", KeyComponent, "kdelibs", Component("kdelibs")},
		{"Target", KeyTarget, "ftp", Target("ftp")},
		{"Kind", KeyKind, "file", Kind("file")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"URL", KeyURL, "https://x", URL("https://x")},
		{"Commit", KeyCommit, "deadbeef", Commit("deadbeef")},
		{"Artifact", KeyArtifact, "a.tar.gz", Artifact("a.tar.gz")},
		{"Outcome", KeyOutcome, "success", Outcome("success")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s: expected key %s got %s", c.name, c.attrKey, c.attr.Key)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s: expected value %s got %s", c.name, c.attrVal, c.attr.Value.String())
		}
	}
}

func TestNumericAndErrorHelpers(t *testing.T) {
	if a := Attempt(3); a.Key != KeyAttempt || a.Value.Int64() != 3 {
		t.Fatalf("unexpected attempt attr %v", a)
	}
	if d := DurationMS(1.5); d.Key != KeyDurationMS || d.Value.Float64() != 1.5 {
		t.Fatalf("unexpected duration attr %v", d)
	}
	if e := Error(nil); e.Value.String() != "" {
		t.Fatalf("nil error should produce empty value, got %q", e.Value.String())
	}
	if e := Error(errors.New("boom")); e.Value.String() != "boom" {
		t.Fatalf("expected boom got %q", e.Value.String())
	}
}
