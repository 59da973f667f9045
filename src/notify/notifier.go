package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"buildmaster-console/src/build"
	"buildmaster-console/src/contracts"
	"buildmaster-console/src/controller"
	"buildmaster-console/src/logger"
)

// Notifier translates controller state transitions into BuildEvents on the
// broker. It is a pure observer: it never feeds anything back into the
// controller.
type Notifier struct {
	broker Broker
	log    logger.Logger
}

func NewNotifier(broker Broker, log logger.Logger) *Notifier {
	return &Notifier{broker: broker, log: log}
}

// Run consumes controller events until ctx is cancelled or the event channel
// closes. Publish failures are logged and skipped; notifications are best
// effort.
func (n *Notifier) Run(ctx context.Context, events <-chan controller.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := n.publish(ctx, ev); err != nil {
				n.log.Error("failed to publish build event: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Notifier) publish(ctx context.Context, ev controller.Event) error {
	kind := eventKind(ev)
	if kind == "" {
		return nil
	}

	event := contracts.NewBuildEvent(kind, ev.BuildID)
	if ev.Snapshot != nil {
		event.Progress = ev.Snapshot.Progress
		event.Message = ev.Snapshot.Message
		event.Error = ev.Snapshot.Error
	}
	if event.Message == "" {
		event.Message = ev.Notice
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal build event: %w", err)
	}

	n.log.Debug("publishing %s for build %s", kind, ev.BuildID)
	return n.broker.Publish(ctx, contracts.TopicBuildEvents, ev.BuildID, data)
}

// eventKind maps controller transitions to event kinds. Idle and Starting
// are internal and produce no notification. A failure the remote watchdog
// attributed to a stall gets its own kind.
func eventKind(ev controller.Event) string {
	switch ev.State {
	case controller.StateRunning:
		return contracts.EventBuildStarted
	case controller.StateSuccess:
		return contracts.EventBuildSucceeded
	case controller.StateError:
		if ev.Snapshot != nil && ev.Snapshot.Status == build.StatusStalled {
			return contracts.EventBuildStalled
		}
		return contracts.EventBuildFailed
	case controller.StateCancelled:
		return contracts.EventBuildCancelled
	}
	return ""
}
