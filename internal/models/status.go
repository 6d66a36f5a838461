package models

// Status is the live state of a single catalog domain.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReachable Status = "reachable"
	StatusBlocked   Status = "blocked"
)

// Terminal reports whether the status is a probe outcome.
func (s Status) Terminal() bool {
	return s == StatusReachable || s == StatusBlocked
}

// Classification is the binary outcome of a reachability probe.
type Classification string

const (
	Reachable Classification = "reachable"
	Blocked   Classification = "blocked"
)

// Status maps a classification onto the terminal domain status.
func (c Classification) Status() Status {
	if c == Reachable {
		return StatusReachable
	}
	return StatusBlocked
}

// Phase tracks the lifecycle of a test run.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
)

// Outcome classifies a service group once its domains have been probed.
type Outcome string

const (
	OutcomeUntested         Outcome = "untested"
	OutcomePartiallyBlocked Outcome = "partially_blocked"
	OutcomeFullyBlocked     Outcome = "fully_blocked"
)
