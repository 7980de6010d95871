package job

// ExitCodeOffset separates controller exit reasons from the codes older agents send.
const ExitCodeOffset = 100

// Exit reasons reported by the agent in jobExit.
const (
	ReasonExited                = 100
	ReasonCheckpointed          = 101
	ReasonKilled                = 102
	ReasonCoreDumped            = 103
	ReasonNotCheckpointed       = 105
	ReasonNotStarted            = 107
	ReasonBadStatus             = 108
	ReasonExecFailed            = 109
	ReasonNoCheckpointFile      = 110
	ReasonShouldRequeue         = 111
	ReasonShouldRemove          = 112
	ReasonShouldHold            = 113
	ReasonExitedAndClaimClosing = 115
	ReasonReconnectFailed       = 116
)

// Exception codes that are never shifted by ExitCodeOffset.
const (
	ReasonException    = 4
	ReasonDprintfError = 44
)

// Process exit codes of the controller.
const (
	ExitHold      = ReasonShouldHold
	ExitException = ReasonException
)

// NormalizeReason maps an older agent's reason code into the controller's numbering.
// Codes below ExitCodeOffset are shifted unless they are reserved exception codes.
func NormalizeReason(reason int) int {
	if reason < ExitCodeOffset && reason != ReasonException && reason != ReasonDprintfError {
		return reason + ExitCodeOffset
	}
	return reason
}

// CountsAsCompletion reports whether reason means the job ran to completion. A core
// dump reason denotes a job that exited and left a core file, not one killed by a signal.
func CountsAsCompletion(reason int) bool {
	switch reason {
	case ReasonExited, ReasonExitedAndClaimClosing, ReasonCoreDumped:
		return true
	}
	return false
}

// Job states as published in JobState.
const (
	StateIdle      = 1
	StateRunning   = 2
	StateRemoved   = 3
	StateCompleted = 4
	StateHeld      = 5
)
