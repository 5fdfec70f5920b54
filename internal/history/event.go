// Package history keeps a SQLite ledger of nightly runs.
//
// Every run appends a stream of events keyed by its run id. Summaries for the
// CLI are folded from those events rather than stored separately.
package history

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// Event types written by the pipeline observer.
const (
	EventRunStarted     = "RunStarted"
	EventUnitCompleted  = "UnitCompleted"
	EventStageCompleted = "StageCompleted"
	EventRunCompleted   = "RunCompleted"
)

// Event is one stored ledger entry.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.HistoryError("failed to unmarshal event payload").
			WithCause(err).
			WithContext("run_id", e.RunID).
			WithContext("event_type", e.Type).
			Build()
	}
	return nil
}

// RunStarted is the payload of EventRunStarted.
type RunStarted struct {
	Started     time.Time `json:"started"`
	NeonVersion string    `json:"neon_version"`
}

// UnitCompleted is the payload of EventUnitCompleted.
type UnitCompleted struct {
	Stage      string `json:"stage"`
	Name       string `json:"name"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// StageCompleted is the payload of EventStageCompleted.
type StageCompleted struct {
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

// RunCompleted is the payload of EventRunCompleted.
type RunCompleted struct {
	Date       string `json:"date"`
	BasePath   string `json:"base_path"`
	State      string `json:"state"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Archive    string `json:"archive,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}
