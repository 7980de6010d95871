package job

import "fmt"

// DefaultHoldReason is used when the agent asks for a hold without saying why.
const DefaultHoldReason = "Job put on hold by remote host."

// CriticalErrorHoldCode is the hold code recorded for a critical remote error that
// carries no hold code of its own.
const CriticalErrorHoldCode = 42

// Hold describes why a job is being held.
type Hold struct {
	Code    int
	SubCode int
	Reason  string
}

// Termination is the outcome of a call that ends supervision of the job. It is
// returned as an error; the outer loop detects it with errors.As, runs cleanup and
// exits the process.
type Termination struct {
	// Hold is set when the job was put on hold.
	Hold *Hold
	// Fatal is the diagnostic of an unrecoverable agent error, logged once by the
	// outer loop.
	Fatal string
}

func (t *Termination) Error() string {
	switch {
	case t.Hold != nil && t.Fatal != "":
		return fmt.Sprintf("job held (code %d): %s", t.Hold.Code, t.Fatal)
	case t.Hold != nil:
		return fmt.Sprintf("job held (code %d): %s", t.Hold.Code, t.Hold.Reason)
	default:
		return "fatal: " + t.Fatal
	}
}

// ExitCode is the process exit code for this outcome.
func (t *Termination) ExitCode() int {
	if t.Hold != nil {
		return ExitHold
	}
	return ExitException
}
