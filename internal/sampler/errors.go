package sampler

import (
	"fmt"
	"time"
)

// CommandSpawnError reports a command that could not be started.
type CommandSpawnError struct {
	Command string
	Err     error
}

func (e *CommandSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn command '%s': %v", e.Command, e.Err)
}

func (e *CommandSpawnError) Unwrap() error { return e.Err }

// CommandFailedError reports a command that exited with a nonzero status.
type CommandFailedError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandFailedError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' failed with stderr: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("command '%s' failed with exit code: %d", e.Command, e.ExitCode)
}

// CommandTimedOutError reports a command killed after exceeding its timeout.
type CommandTimedOutError struct {
	Command string
	Timeout time.Duration
}

func (e *CommandTimedOutError) Error() string {
	return fmt.Sprintf("command '%s' timed out after %s and was killed", e.Command, e.Timeout)
}
