package controller

import (
	"context"

	"buildmaster-console/src/build"
	"buildmaster-console/src/buildmaster"
)

// scheduleRecovery issues an active-build probe. The probe runs on its own
// interval in every controller state, with the same skip-don't-queue rule as
// the poller. Called from the run loop only.
func (c *Controller) scheduleRecovery() {
	if c.checkInFlight {
		return
	}

	c.checkInFlight = true

	go func() {
		reqCtx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		info, err := c.api.ActiveBuild(reqCtx)
		cancel()
		c.send(func() { c.applyRecovery(info, err) })
	}()
}

// applyRecovery re-attaches the controller to a build that is already running
// remotely, e.g. after the console was restarted mid-build. Recovery only
// adopts a build while the controller is Idle with no handle of its own: it
// never pre-empts a locally-initiated build, so a stale probe response cannot
// clobber an in-progress local start.
func (c *Controller) applyRecovery(info *buildmaster.ActiveInfo, err error) {
	c.checkInFlight = false

	if err != nil {
		// Probe failures are non-fatal background noise.
		c.log.Debug("active-build probe failed: %v", err)
		return
	}

	if !info.HasActiveBuild || info.ActiveBuild == nil {
		return
	}
	if c.state != StateIdle || c.handle != nil {
		return
	}

	startedAt := info.ActiveBuild.StartedAt
	if startedAt.IsZero() {
		startedAt = c.now()
	}

	c.handle = &build.Handle{
		BuildID:   info.ActiveBuild.BuildID,
		StartedAt: startedAt,
	}
	c.last = nil
	c.notice = ""
	c.state = StateRunning
	c.log.Info("re-attached to running build %s", c.handle.BuildID)
	c.emit()
	c.sync()
	c.schedulePoll()
}
