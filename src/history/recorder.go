package history

import (
	"context"
	"time"

	"buildmaster-console/src/build"
	"buildmaster-console/src/controller"
	"buildmaster-console/src/logger"
)

// Recorder journals terminal build outcomes from controller events.
type Recorder struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

func NewRecorder(store Store, log logger.Logger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Run consumes controller events until ctx is cancelled or the event channel
// closes. Only terminal transitions are saved; intermediate states carry no
// outcome worth journaling.
func (r *Recorder) Run(ctx context.Context, events <-chan controller.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.State.Terminal() {
				continue
			}
			if err := r.store.SaveOutcome(ctx, r.record(ev)); err != nil {
				r.log.Error("failed to journal build outcome: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Recorder) record(ev controller.Event) Record {
	rec := Record{
		BuildID:     ev.BuildID,
		Status:      outcomeStatus(ev),
		CompletedAt: r.now(),
	}
	if snap := ev.Snapshot; snap != nil {
		rec.Message = snap.Message
		rec.Error = snap.Error
		rec.StartedAt = snap.StartedAt
		rec.DurationSeconds = snap.DurationSeconds
		if snap.CompletedAt != nil {
			rec.CompletedAt = *snap.CompletedAt
		}
	}
	return rec
}

func outcomeStatus(ev controller.Event) build.Status {
	if ev.Snapshot != nil && ev.Snapshot.Status.Terminal() {
		return ev.Snapshot.Status
	}
	switch ev.State {
	case controller.StateSuccess:
		return build.StatusSuccess
	case controller.StateCancelled:
		return build.StatusCancelled
	}
	return build.StatusError
}
