package history

import (
	"context"
	"time"
)

// Store persists and queries run events.
type Store interface {
	// Append adds a new event for a run.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID returns all events of one run in append order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange returns events recorded within [start, end].
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// RecentRuns summarizes the newest runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)

	Close() error
}
