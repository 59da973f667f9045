// Package controller implements the build lifecycle controller: the state
// machine that starts remote builds, supervises them through polling, detects
// stalls, handles operator cancellation, and re-attaches to builds that were
// already running before the console started observing.
//
// All state lives in a single run-loop goroutine. Operator commands, poll
// results, and recovery results are delivered to that goroutine as messages;
// nothing else ever mutates controller state.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"buildmaster-console/src/build"
	"buildmaster-console/src/buildmaster"
	"buildmaster-console/src/logger"
)

// State is the controller's coarse lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateSuccess   State = "success"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the controller is in a finished-build state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError || s == StateCancelled
}

const (
	// DefaultPollInterval is how often a running build's status is sampled.
	DefaultPollInterval = 2 * time.Second

	// DefaultRecoveryInterval is how often the active-build probe runs,
	// regardless of controller state.
	DefaultRecoveryInterval = 3 * time.Second

	// DefaultRequestTimeout bounds each poll and recovery request. Shorter
	// than the poll interval so a hung request cannot block the loop.
	DefaultRequestTimeout = 1500 * time.Millisecond

	// DefaultStartTimeout bounds start and cancel requests.
	DefaultStartTimeout = 30 * time.Second

	// DefaultFailureThreshold is how many consecutive poll failures are
	// tolerated before the observation-degraded notice is raised.
	DefaultFailureThreshold = 3
)

var (
	ErrBuildActive   = errors.New("a build is already in progress")
	ErrNoActiveBuild = errors.New("no build is currently running")
	ErrCancelPending = errors.New("a cancel request is already in flight")
	ErrStopped       = errors.New("controller is not running")
)

// API is the remote surface the controller depends on.
type API interface {
	StartBuild(ctx context.Context, cfg build.Config) (*build.Snapshot, error)
	BuildStatus(ctx context.Context, buildID string) (*build.Snapshot, error)
	CancelBuild(ctx context.Context, buildID string) (*buildmaster.CancelResult, error)
	ActiveBuild(ctx context.Context) (*buildmaster.ActiveInfo, error)
}

// View is the controller's observable state, exposed to the presentation
// layer. Stalled is recomputed from the clock on every read.
type View struct {
	State     State
	BuildID   string
	StartedAt time.Time
	Last      *build.Snapshot
	Stalled   bool
	Degraded  bool
	Notice    string
}

// Options tune controller timing; zero values select the defaults.
type Options struct {
	PollInterval     time.Duration
	RecoveryInterval time.Duration
	RequestTimeout   time.Duration
	StartTimeout     time.Duration
	FailureThreshold int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Controller supervises at most one remote build at a time.
type Controller struct {
	api API
	log logger.Logger
	now func() time.Time

	pollInterval     time.Duration
	recoveryInterval time.Duration
	requestTimeout   time.Duration
	startTimeout     time.Duration
	failureThreshold int

	inbox chan func()
	done  chan struct{}
	ctx   context.Context

	// Owned by the run loop.
	state          State
	handle         *build.Handle
	last           *build.Snapshot
	notice         string
	pollFailures   int
	degraded       bool
	pollInFlight   bool
	checkInFlight  bool
	cancelInFlight bool

	viewMu sync.RWMutex
	view   View

	subMu       sync.Mutex
	subscribers []chan Event
}

// New creates a controller in the Idle state. Run must be called before any
// command is issued.
func New(api API, log logger.Logger, opts *Options) *Controller {
	if opts == nil {
		opts = &Options{}
	}

	c := &Controller{
		api:              api,
		log:              log,
		now:              opts.Now,
		pollInterval:     opts.PollInterval,
		recoveryInterval: opts.RecoveryInterval,
		requestTimeout:   opts.RequestTimeout,
		startTimeout:     opts.StartTimeout,
		failureThreshold: opts.FailureThreshold,
		inbox:            make(chan func(), 16),
		done:             make(chan struct{}),
		state:            StateIdle,
	}

	if c.now == nil {
		c.now = time.Now
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.recoveryInterval <= 0 {
		c.recoveryInterval = DefaultRecoveryInterval
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.startTimeout <= 0 {
		c.startTimeout = DefaultStartTimeout
	}
	if c.failureThreshold <= 0 {
		c.failureThreshold = DefaultFailureThreshold
	}

	c.sync()
	return c
}

// Run executes the controller loop until ctx is cancelled. It must be called
// exactly once, before any command.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)

	pollTicker := time.NewTicker(c.pollInterval)
	defer pollTicker.Stop()
	recoveryTicker := time.NewTicker(c.recoveryInterval)
	defer recoveryTicker.Stop()

	// Probe for an already-running build right away so a console opened
	// mid-build attaches without waiting a full recovery interval.
	c.scheduleRecovery()

	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-pollTicker.C:
			c.schedulePoll()
		case <-recoveryTicker.C:
			c.scheduleRecovery()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// send delivers fn to the run loop. Returns false once the loop has exited.
func (c *Controller) send(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Start submits a build with the given configuration and blocks until the
// remote accepts or rejects it. The controller never retries a rejected start.
func (c *Controller) Start(ctx context.Context, cfg build.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid build configuration: %w", err)
	}

	errc := make(chan error, 1)
	if !c.send(func() { c.handleStart(cfg, errc) }) {
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handleStart(cfg build.Config, errc chan<- error) {
	if c.state == StateStarting || c.state == StateRunning {
		errc <- ErrBuildActive
		return
	}

	// Starting from a terminal state implicitly acknowledges the old build.
	c.handle = nil
	c.last = nil
	c.notice = ""
	c.pollFailures = 0
	c.degraded = false
	c.state = StateStarting
	c.emit()
	c.sync()

	go func() {
		reqCtx, cancel := context.WithTimeout(c.ctx, c.startTimeout)
		snap, err := c.api.StartBuild(reqCtx, cfg)
		cancel()
		if !c.send(func() { c.finishStart(snap, err, errc) }) {
			errc <- ErrStopped
		}
	}()
}

func (c *Controller) finishStart(snap *build.Snapshot, err error, errc chan<- error) {
	if err != nil {
		// Start rejection: surface the remote message, return to Idle.
		c.state = StateIdle
		c.notice = err.Error()
		c.log.Error("build start rejected: %v", err)
		c.emit()
		c.sync()
		errc <- err
		return
	}

	c.handle = &build.Handle{BuildID: snap.BuildID, StartedAt: c.now()}
	c.last = snap
	c.state = StateRunning
	c.log.Info("build %s started", snap.BuildID)
	c.emit()
	c.sync()
	c.schedulePoll()
	errc <- nil
}

// Cancel asks the remote to kill the current build. Permitted only while
// Running; the controller leaves Running only after the remote acknowledges.
func (c *Controller) Cancel(ctx context.Context) error {
	errc := make(chan error, 1)
	if !c.send(func() { c.handleCancel(errc) }) {
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handleCancel(errc chan<- error) {
	if c.state != StateRunning || c.handle == nil {
		errc <- ErrNoActiveBuild
		return
	}
	if c.cancelInFlight {
		errc <- ErrCancelPending
		return
	}

	c.cancelInFlight = true
	buildID := c.handle.BuildID

	go func() {
		reqCtx, cancel := context.WithTimeout(c.ctx, c.startTimeout)
		result, err := c.api.CancelBuild(reqCtx, buildID)
		cancel()
		if !c.send(func() { c.finishCancel(buildID, result, err, errc) }) {
			errc <- ErrStopped
		}
	}()
}

func (c *Controller) finishCancel(buildID string, result *buildmaster.CancelResult, err error, errc chan<- error) {
	c.cancelInFlight = false

	// The build may have finished on its own while the cancel was in
	// flight. The terminal outcome is authoritative; the late ack is a
	// no-op and the operator keeps the already-known result.
	if c.state.Terminal() || c.handle == nil || c.handle.BuildID != buildID {
		errc <- nil
		return
	}

	if err == nil && result != nil && !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "remote refused to cancel the build"
		}
		err = errors.New(msg)
	}

	if err != nil {
		// Cancel failure is transient and retryable; the build is
		// presumed to still be running.
		c.notice = fmt.Sprintf("cancel failed: %s", err.Error())
		c.log.Error("cancel of build %s failed: %v", buildID, err)
		c.sync()
		errc <- err
		return
	}

	c.state = StateCancelled
	if result.Message != "" {
		c.notice = result.Message
	}
	c.log.Info("build %s cancelled", buildID)
	c.emit()
	c.sync()
	errc <- nil
}

// Reset acknowledges a terminal outcome and returns the controller to Idle.
func (c *Controller) Reset(ctx context.Context) error {
	errc := make(chan error, 1)
	if !c.send(func() { c.handleReset(errc) }) {
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handleReset(errc chan<- error) {
	if c.state == StateStarting || c.state == StateRunning {
		errc <- ErrBuildActive
		return
	}

	c.state = StateIdle
	c.handle = nil
	c.last = nil
	c.notice = ""
	c.pollFailures = 0
	c.degraded = false
	c.emit()
	c.sync()
	errc <- nil
}

// View returns a copy of the observable state. The stall flag is derived
// from the clock at read time, so the presentation layer can simply re-read
// on every UI tick.
func (c *Controller) View() View {
	c.viewMu.RLock()
	v := c.view
	c.viewMu.RUnlock()

	v.Stalled = c.stalled(v)
	return v
}

func (c *Controller) stalled(v View) bool {
	if v.State != StateRunning || v.StartedAt.IsZero() {
		return false
	}
	return build.Stalled(c.now(), v.StartedAt, build.StatusRunning)
}

// sync publishes the loop's state as the readable view. Called from the run
// loop only.
func (c *Controller) sync() {
	v := View{
		State:    c.state,
		Last:     c.last,
		Degraded: c.degraded,
		Notice:   c.notice,
	}
	if c.handle != nil {
		v.BuildID = c.handle.BuildID
		v.StartedAt = c.handle.StartedAt
	}

	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()
}
