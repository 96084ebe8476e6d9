package runner

import "fmt"

// CommandError carries the details of a failed command execution.
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	Reason   FailReason
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command '%s' failed with exit code %d", e.Cmd, e.ExitCode)
	if e.Reason == ReasonTimedOut {
		msg = fmt.Sprintf("command '%s' timed out", e.Cmd)
	} else if e.Reason == ReasonCancelled {
		msg = fmt.Sprintf("command '%s' cancelled", e.Cmd)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (underlying error: %v)", msg, e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
