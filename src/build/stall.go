package build

import "time"

// StallThreshold is how long a build may stay in the running state before the
// console raises the stall warning. The remote watchdog uses its own, longer
// timeout; this one only drives an advisory banner and never cancels anything.
const StallThreshold = 5 * time.Minute

// Stalled reports whether a running build has exceeded the stall threshold.
// Pure function of its inputs; recomputed on every status update and UI tick.
func Stalled(now, startedAt time.Time, status Status) bool {
	if status != StatusRunning {
		return false
	}
	return now.Sub(startedAt) >= StallThreshold
}

// StallHints are the remediation suggestions shown alongside a stall warning.
var StallHints = []string{
	"Reduce the worker count",
	"Enable the Redis build cache",
	"Switch to a phased build mode",
	"Increase max_old_space_size if memory-bound",
}
