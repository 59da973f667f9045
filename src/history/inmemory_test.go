package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"buildmaster-console/src/build"
	"buildmaster-console/src/controller"
	"buildmaster-console/src/logger"
)

func TestInMemoryStoreNewestFirst(t *testing.T) {
	store := NewInMemoryStore()
	defer store.Close()

	for i := 0; i < 3; i++ {
		rec := Record{
			BuildID:     fmt.Sprintf("build-%d", i),
			Status:      build.StatusSuccess,
			CompletedAt: time.Now(),
		}
		if err := store.SaveOutcome(context.Background(), rec); err != nil {
			t.Fatalf("SaveOutcome() error = %v", err)
		}
	}

	records, err := store.ListOutcomes(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].BuildID != "build-2" || records[2].BuildID != "build-0" {
		t.Errorf("records not newest first: %q ... %q", records[0].BuildID, records[2].BuildID)
	}
}

func TestInMemoryStoreLimit(t *testing.T) {
	store := NewInMemoryStore()
	defer store.Close()

	for i := 0; i < 5; i++ {
		rec := Record{BuildID: fmt.Sprintf("build-%d", i), Status: build.StatusError}
		if err := store.SaveOutcome(context.Background(), rec); err != nil {
			t.Fatalf("SaveOutcome() error = %v", err)
		}
	}

	records, err := store.ListOutcomes(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestRecorderSavesTerminalOutcomesOnly(t *testing.T) {
	store := NewInMemoryStore()
	defer store.Close()

	events := make(chan controller.Event, 8)
	recorder := NewRecorder(store, logger.NewSilentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(ctx, events)
	}()

	completed := time.Now()
	events <- controller.Event{State: controller.StateStarting}
	events <- controller.Event{
		State:    controller.StateRunning,
		BuildID:  "abc",
		Snapshot: &build.Snapshot{BuildID: "abc", Status: build.StatusRunning},
	}
	events <- controller.Event{
		State:   controller.StateError,
		BuildID: "abc",
		Snapshot: &build.Snapshot{
			BuildID:         "abc",
			Status:          build.StatusError,
			Error:           "compile failed in vendor bundle",
			CompletedAt:     &completed,
			DurationSeconds: 42.5,
		},
	}
	close(events)
	<-done

	records, err := store.ListOutcomes(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 terminal outcome", len(records))
	}
	rec := records[0]
	if rec.BuildID != "abc" {
		t.Errorf("build id = %q, want abc", rec.BuildID)
	}
	if rec.Status != build.StatusError {
		t.Errorf("status = %q, want error", rec.Status)
	}
	if rec.Error != "compile failed in vendor bundle" {
		t.Errorf("error = %q, want remote text verbatim", rec.Error)
	}
	if !rec.CompletedAt.Equal(completed) {
		t.Errorf("completed_at = %v, want snapshot value %v", rec.CompletedAt, completed)
	}
	if rec.DurationSeconds != 42.5 {
		t.Errorf("duration = %v, want 42.5", rec.DurationSeconds)
	}
}
