package controller

import (
	"context"

	"buildmaster-console/src/build"
)

// schedulePoll issues a status request for the current build. Polls are only
// issued while Running, and never while another poll is outstanding: a slow
// response causes the next tick to be skipped, not queued. Called from the
// run loop only.
func (c *Controller) schedulePoll() {
	if c.state != StateRunning || c.handle == nil || c.pollInFlight {
		return
	}

	c.pollInFlight = true
	buildID := c.handle.BuildID

	go func() {
		reqCtx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		snap, err := c.api.BuildStatus(reqCtx, buildID)
		cancel()
		c.send(func() { c.applyPoll(buildID, snap, err) })
	}()
}

// applyPoll folds one poll result into controller state. A response for a
// build other than the current one is stale and dropped. A response that
// arrives after the controller has already left Running is still applied as
// the latest snapshot, but cannot regress the state; no new poll follows it.
func (c *Controller) applyPoll(buildID string, snap *build.Snapshot, err error) {
	c.pollInFlight = false

	if c.handle == nil || c.handle.BuildID != buildID {
		return
	}

	if err != nil {
		if c.state != StateRunning {
			return
		}
		// Transient poll failure: keep the last snapshot, stay Running.
		// The remote build continues whether or not we can observe it.
		c.pollFailures++
		c.log.Debug("status poll for build %s failed (%d consecutive): %v", buildID, c.pollFailures, err)
		if c.pollFailures >= c.failureThreshold && !c.degraded {
			c.degraded = true
			c.log.Error("build %s status unavailable after %d failed polls; the build itself is presumed to continue", buildID, c.pollFailures)
		}
		c.sync()
		return
	}

	c.pollFailures = 0
	c.degraded = false
	c.last = snap

	if c.state == StateRunning && snap.Status.Terminal() {
		switch snap.Status {
		case build.StatusSuccess:
			c.state = StateSuccess
			c.log.Info("build %s succeeded", buildID)
		case build.StatusCancelled:
			// Cancelled remotely, e.g. by another console session.
			c.state = StateCancelled
			c.log.Info("build %s was cancelled remotely", buildID)
		default:
			c.state = StateError
			c.log.Error("build %s failed: %s", buildID, snap.Error)
		}
		c.emit()
	}

	c.sync()
}
