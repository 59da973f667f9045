package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"buildmaster-console/src/build"
	"buildmaster-console/src/buildmaster"
	"buildmaster-console/src/logger"
)

// statusReply is one scripted response of the fake status endpoint.
type statusReply struct {
	snap *build.Snapshot
	err  error
}

// fakeAPI scripts the remote. Status replies are consumed in order; the last
// one repeats once the queue is exhausted.
type fakeAPI struct {
	mu sync.Mutex

	startSnap  *build.Snapshot
	startErr   error
	startBlock chan struct{} // when non-nil, StartBuild waits on it
	startCalls int

	statusQueue []statusReply
	statusCalls int

	cancelResult *buildmaster.CancelResult
	cancelErr    error
	cancelCalls  int

	active *buildmaster.ActiveInfo
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		active: &buildmaster.ActiveInfo{HasActiveBuild: false},
	}
}

func (f *fakeAPI) StartBuild(ctx context.Context, cfg build.Config) (*build.Snapshot, error) {
	f.mu.Lock()
	f.startCalls++
	block := f.startBlock
	snap, err := f.startSnap, f.startErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snap, err
}

func (f *fakeAPI) BuildStatus(ctx context.Context, buildID string) (*build.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	if len(f.statusQueue) == 0 {
		return nil, errors.New("no status scripted")
	}
	reply := f.statusQueue[0]
	if len(f.statusQueue) > 1 {
		f.statusQueue = f.statusQueue[1:]
	}
	return reply.snap, reply.err
}

func (f *fakeAPI) CancelBuild(ctx context.Context, buildID string) (*buildmaster.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelResult, f.cancelErr
}

func (f *fakeAPI) ActiveBuild(ctx context.Context) (*buildmaster.ActiveInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeAPI) setActive(info *buildmaster.ActiveInfo) {
	f.mu.Lock()
	f.active = info
	f.mu.Unlock()
}

func (f *fakeAPI) countStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// fakeClock is a manually advanced clock for stall tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func startController(t *testing.T, api API, opts *Options) *Controller {
	t.Helper()

	if opts == nil {
		opts = &Options{}
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.RecoveryInterval == 0 {
		opts.RecoveryInterval = 15 * time.Millisecond
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 100 * time.Millisecond
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 500 * time.Millisecond
	}

	c := New(api, logger.NewSilentLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)

	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func runningSnap(id string, progress float64, step string) *build.Snapshot {
	return &build.Snapshot{BuildID: id, Status: build.StatusRunning, Progress: progress, CurrentStep: step, Message: step}
}

func TestFullLifecycle(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{
		{snap: &build.Snapshot{BuildID: "abc", Status: build.StatusPending}},
		{snap: runningSnap("abc", 40, "compile")},
		{snap: runningSnap("abc", 90, "package")},
		{snap: &build.Snapshot{BuildID: "abc", Status: build.StatusSuccess, Progress: 100, Message: "Build completed successfully"}},
	}

	c := startController(t, api, nil)

	cfg := build.DefaultConfig()
	cfg.BuildMode = build.ModeQuick
	cfg.Workers = 4
	if err := c.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if v := c.View(); v.State != StateRunning || v.BuildID != "abc" {
		t.Fatalf("after Start: state = %v buildID = %q, want running abc", v.State, v.BuildID)
	}

	waitFor(t, "terminal success", func() bool {
		return c.View().State == StateSuccess
	})

	v := c.View()
	if v.Last == nil || v.Last.Progress != 100 {
		t.Errorf("final snapshot = %+v, want progress 100", v.Last)
	}
	if v.Last.Status != build.StatusSuccess {
		t.Errorf("final status = %q, want success", v.Last.Status)
	}
	if v.Stalled {
		t.Error("stall flag must clear on terminal state")
	}

	// Polling must stop once the terminal sample is seen.
	calls := api.countStatusCalls()
	time.Sleep(100 * time.Millisecond)
	if after := api.countStatusCalls(); after != calls {
		t.Errorf("polling continued after terminal state: %d -> %d calls", calls, after)
	}
}

func TestStartRejectionSurfacesRemoteText(t *testing.T) {
	api := newFakeAPI()
	api.startErr = &buildmaster.APIError{StatusCode: 409, Message: "Build already running: job-7"}

	c := startController(t, api, nil)

	err := c.Start(context.Background(), build.DefaultConfig())
	if err == nil {
		t.Fatal("Start() expected rejection error")
	}
	var apiErr *buildmaster.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Build already running: job-7" {
		t.Errorf("error = %v, want remote text verbatim", err)
	}

	v := c.View()
	if v.State != StateIdle {
		t.Errorf("state = %v, want idle after rejection", v.State)
	}
	if v.Notice != "Build already running: job-7" {
		t.Errorf("notice = %q, want remote text verbatim", v.Notice)
	}
}

func TestConcurrentStartsYieldSingleBuild(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.startBlock = make(chan struct{})
	api.statusQueue = []statusReply{{snap: runningSnap("abc", 10, "compile")}}

	c := startController(t, api, nil)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- c.Start(context.Background(), build.DefaultConfig())
		}()
	}

	// One Start must be rejected immediately while the other is in flight.
	var rejected error
	select {
	case rejected = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the rejected start")
	}
	if !errors.Is(rejected, ErrBuildActive) {
		t.Fatalf("second start error = %v, want ErrBuildActive", rejected)
	}

	close(api.startBlock)
	if err := <-results; err != nil {
		t.Fatalf("first start error = %v, want nil", err)
	}

	api.mu.Lock()
	startCalls := api.startCalls
	api.mu.Unlock()
	if startCalls != 1 {
		t.Errorf("remote StartBuild called %d times, want 1", startCalls)
	}
}

func TestTransientPollFailuresDoNotChangeState(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{snap: runningSnap("abc", 50, "compile")},
	}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "snapshot at 50%", func() bool {
		v := c.View()
		return v.Last != nil && v.Last.Progress == 50
	})

	v := c.View()
	if v.State != StateRunning {
		t.Errorf("state = %v, want running despite transient failures", v.State)
	}
	if v.Degraded {
		t.Error("degraded flag must clear after a successful poll")
	}
}

func TestPollFailuresRaiseDegradedNotice(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{
		{err: errors.New("connection refused")}, // repeats forever
	}

	c := startController(t, api, &Options{FailureThreshold: 3})
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "degraded observation notice", func() bool {
		return c.View().Degraded
	})

	// Degraded is a notice, not a state change: the job is presumed alive.
	if v := c.View(); v.State != StateRunning {
		t.Errorf("state = %v, want running while observation is degraded", v.State)
	}
}

func TestCancelAcknowledged(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: runningSnap("abc", 30, "compile")}}
	api.cancelResult = &buildmaster.CancelResult{Success: true, Message: "Build cancelled successfully"}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Drain the in-flight poll scheduled by Start so the post-cancel
	// assertion only sees polls issued after the acknowledgment.
	waitFor(t, "first poll", func() bool { return api.countStatusCalls() >= 1 })

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	v := c.View()
	if v.State != StateCancelled {
		t.Errorf("state = %v, want cancelled after ack", v.State)
	}

	calls := api.countStatusCalls()
	time.Sleep(100 * time.Millisecond)
	if after := api.countStatusCalls(); after != calls {
		t.Errorf("polling continued after cancellation: %d -> %d calls", calls, after)
	}
}

func TestCancelFailureLeavesRunning(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: runningSnap("abc", 30, "compile")}}
	api.cancelResult = &buildmaster.CancelResult{Success: false, Error: "Build process is not responding"}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := c.Cancel(context.Background())
	if err == nil {
		t.Fatal("Cancel() expected error when remote refuses")
	}

	v := c.View()
	if v.State != StateRunning {
		t.Errorf("state = %v, want running after failed cancel", v.State)
	}
	if v.Notice == "" {
		t.Error("expected a retryable cancel-failure notice")
	}

	// Cancel must be retryable.
	api.mu.Lock()
	api.cancelResult = &buildmaster.CancelResult{Success: true}
	api.mu.Unlock()
	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("retried Cancel() error = %v", err)
	}
	if v := c.View(); v.State != StateCancelled {
		t.Errorf("state = %v, want cancelled after retry", v.State)
	}
}

func TestCancelWithoutBuild(t *testing.T) {
	api := newFakeAPI()
	c := startController(t, api, nil)

	if err := c.Cancel(context.Background()); !errors.Is(err, ErrNoActiveBuild) {
		t.Errorf("Cancel() error = %v, want ErrNoActiveBuild", err)
	}
}

func TestRecoveryAdoptsRemoteBuild(t *testing.T) {
	started := time.Now().Add(-time.Minute).UTC()

	api := newFakeAPI()
	api.statusQueue = []statusReply{{snap: runningSnap("job-42", 60, "package")}}
	api.setActive(&buildmaster.ActiveInfo{
		HasActiveBuild: true,
		ActiveBuild: &buildmaster.ActiveBuild{
			BuildID:   "job-42",
			Status:    build.StatusRunning,
			StartedAt: started,
		},
	})

	c := startController(t, api, nil)

	waitFor(t, "recovery adoption", func() bool {
		v := c.View()
		return v.State == StateRunning && v.BuildID == "job-42"
	})

	v := c.View()
	if !v.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want remote-reported %v", v.StartedAt, started)
	}

	waitFor(t, "polling the recovered build", func() bool {
		last := c.View().Last
		return last != nil && last.Progress == 60
	})
}

func TestRecoveryNeverPreemptsLocalBuild(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "local-1", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: runningSnap("local-1", 20, "compile")}}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// A stale probe now reports a different identifier.
	api.setActive(&buildmaster.ActiveInfo{
		HasActiveBuild: true,
		ActiveBuild:    &buildmaster.ActiveBuild{BuildID: "stale-7", Status: build.StatusRunning},
	})

	time.Sleep(100 * time.Millisecond)

	if v := c.View(); v.BuildID != "local-1" {
		t.Errorf("BuildID = %q, recovery must not overwrite a local handle", v.BuildID)
	}
}

func TestStallFlag(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: runningSnap("abc", 10, "compile")}}

	c := startController(t, api, &Options{Now: clock.Now})
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if c.View().Stalled {
		t.Error("fresh build must not be stalled")
	}

	clock.Advance(build.StallThreshold)
	if !c.View().Stalled {
		t.Error("running build past threshold must be stalled")
	}

	// A terminal sample clears the flag instantly.
	api.mu.Lock()
	api.statusQueue = []statusReply{{snap: &build.Snapshot{BuildID: "abc", Status: build.StatusSuccess, Progress: 100}}}
	api.mu.Unlock()

	waitFor(t, "terminal state", func() bool {
		return c.View().State == StateSuccess
	})
	if c.View().Stalled {
		t.Error("stall flag must be false once the build leaves running")
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: &build.Snapshot{BuildID: "abc", Status: build.StatusError, Error: "Failed to compile"}}}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "terminal error", func() bool {
		return c.View().State == StateError
	})

	// The remote's error text is retained verbatim until acknowledged.
	if v := c.View(); v.Last == nil || v.Last.Error != "Failed to compile" {
		t.Errorf("last snapshot = %+v, want remote error text", v.Last)
	}

	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	v := c.View()
	if v.State != StateIdle || v.BuildID != "" || v.Last != nil {
		t.Errorf("after Reset: %+v, want pristine idle view", v)
	}
}

func TestResetRejectedWhileRunning(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{{snap: runningSnap("abc", 10, "compile")}}

	c := startController(t, api, nil)
	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := c.Reset(context.Background()); !errors.Is(err, ErrBuildActive) {
		t.Errorf("Reset() error = %v, want ErrBuildActive", err)
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	api := newFakeAPI()
	api.startSnap = &build.Snapshot{BuildID: "abc", Status: build.StatusPending}
	api.statusQueue = []statusReply{
		{snap: &build.Snapshot{BuildID: "abc", Status: build.StatusSuccess, Progress: 100}},
	}

	c := startController(t, api, nil)
	events := c.Subscribe()

	if err := c.Start(context.Background(), build.DefaultConfig()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var seen []State
	deadline := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-events:
			seen = append(seen, ev.State)
		case <-deadline:
			t.Fatalf("timed out, transitions so far: %v", seen)
		}
	}

	want := []State{StateStarting, StateRunning, StateSuccess}
	for i, s := range want {
		if seen[i] != s {
			t.Fatalf("transition[%d] = %v, want %v (all: %v)", i, seen[i], s, seen)
		}
	}
}
