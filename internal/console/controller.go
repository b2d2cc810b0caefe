// Package console holds the state behind the config console: the agent
// run controller, the log buffer, the configuration editor and user notices.
// Every type here is a value with pure transition methods; the view layer
// owns the only mutable copy.
package console

import "github.com/alexsjones/agentconsole/internal/agentclient"

// AgentStatus is what the console believes about the agent process.
type AgentStatus string

const (
	StatusStopped AgentStatus = "stopped"
	StatusPending AgentStatus = "pending"
	StatusRunning AgentStatus = "running"
)

// Statuses lists every status, used to reset status gauges.
var Statuses = []string{string(StatusStopped), string(StatusPending), string(StatusRunning)}

// Flip returns the opposite settled status. Pending flips to itself.
func Flip(s AgentStatus) AgentStatus {
	switch s {
	case StatusStopped:
		return StatusRunning
	case StatusRunning:
		return StatusStopped
	default:
		return s
	}
}

// Action is the control call a toggle requires.
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

// Controller tracks the agent status across toggle requests. The zero value
// is a stopped agent.
type Controller struct {
	Status AgentStatus
	// Target is the status requested while Status is pending.
	Target  AgentStatus
	LastErr error
}

func (c Controller) settled() AgentStatus {
	if c.Status == "" {
		return StatusStopped
	}
	return c.Status
}

// Toggle requests the opposite of the current status. It reports false and
// leaves c unchanged while a request is already in flight.
func (c Controller) Toggle() (Controller, Action, bool) {
	cur := c.settled()
	if cur == StatusPending {
		return c, ActionNone, false
	}
	next := Controller{Status: StatusPending, Target: Flip(cur)}
	if cur == StatusStopped {
		return next, ActionStart, true
	}
	return next, ActionStop, true
}

// Pending reports whether a control request is in flight.
func (c Controller) Pending() bool { return c.settled() == StatusPending }

// Intent is the status the operator last asked for. It is what the control
// button renders.
func (c Controller) Intent() AgentStatus {
	if c.Pending() {
		return c.Target
	}
	return c.settled()
}

// Confirm settles a pending request. A recognized backend status word wins
// over the requested target.
func (c Controller) Confirm(res agentclient.ControlResult) Controller {
	if !c.Pending() {
		return c
	}
	status := c.Target
	switch res.Status {
	case agentclient.StatusStarted, agentclient.StatusAlreadyRunning:
		status = StatusRunning
	case agentclient.StatusStopped:
		status = StatusStopped
	}
	return Controller{Status: status}
}

// Fail settles a pending request by reverting to the status held before the
// toggle.
func (c Controller) Fail(err error) Controller {
	if !c.Pending() {
		return c
	}
	return Controller{Status: Flip(c.Target), LastErr: err}
}
