// Package history keeps a local journal of build outcomes observed by this
// console. The remote system remains the source of truth for build state;
// the journal only preserves what the operator has already seen, so recent
// outcomes survive console restarts when Postgres is configured.
package history

import (
	"context"
	"time"

	"buildmaster-console/src/build"
)

// Record is one observed terminal build outcome.
type Record struct {
	BuildID         string
	Status          build.Status
	Message         string
	Error           string
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
}

// Store persists observed build outcomes, newest first.
type Store interface {
	SaveOutcome(ctx context.Context, rec Record) error
	ListOutcomes(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
