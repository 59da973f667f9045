package controller

import "buildmaster-console/src/build"

// Event is published on every controller state transition. Subscribers (the
// notifier and the history recorder) observe; they never mutate.
type Event struct {
	State    State
	BuildID  string
	Snapshot *build.Snapshot
	Notice   string
}

// Subscribe returns a channel of state-transition events. The channel is
// buffered; a subscriber that falls behind loses events rather than blocking
// the controller.
func (c *Controller) Subscribe() <-chan Event {
	ch := make(chan Event, 16)

	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()

	return ch
}

// emit fans the current state out to all subscribers. Called from the run
// loop only, on state transitions.
func (c *Controller) emit() {
	ev := Event{
		State:    c.state,
		Snapshot: c.last,
		Notice:   c.notice,
	}
	if c.handle != nil {
		ev.BuildID = c.handle.BuildID
	} else if c.last != nil {
		ev.BuildID = c.last.BuildID
	}

	c.subMu.Lock()
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			c.log.Debug("dropping controller event for a slow subscriber")
		}
	}
	c.subMu.Unlock()
}
