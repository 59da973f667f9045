// Package contracts defines the event messages exchanged between the console
// subsystems and published to the notification broker.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// TopicBuildEvents carries build lifecycle transitions.
// Key: {build_id}
const TopicBuildEvents = "buildmaster.build.events"

// Event kinds published on TopicBuildEvents.
const (
	EventBuildStarted   = "build.started"
	EventBuildSucceeded = "build.succeeded"
	EventBuildFailed    = "build.failed"
	EventBuildCancelled = "build.cancelled"
	EventBuildStalled   = "build.stalled"
)

// BuildEvent is one lifecycle transition of a supervised build.
type BuildEvent struct {
	EventID   string  `json:"event_id"`
	Kind      string  `json:"kind"`
	BuildID   string  `json:"build_id"`
	Progress  float64 `json:"progress,omitempty"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// NewBuildEvent stamps a fresh event with a unique ID and the current time.
func NewBuildEvent(kind, buildID string) BuildEvent {
	return BuildEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		BuildID:   buildID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
