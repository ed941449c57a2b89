package sampler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// DefaultShell runs commands when Executor.Shell is empty.
const DefaultShell = "sh"

// waitDelay bounds how long Wait keeps reading pipes held open by
// descendants after the shell itself has exited or been killed.
const waitDelay = 500 * time.Millisecond

// Executor runs one shell command at a time under a timeout.
type Executor struct {
	Shell   string
	Timeout time.Duration
}

// Run executes command through the shell and returns its stdout. The parent
// context contributes values only: an in-flight command stops on its own
// timeout, never on caller cancellation.
func (e *Executor) Run(ctx context.Context, command string) (string, error) {
	shell := e.Shell
	if shell == "" {
		shell = DefaultShell
	}
	runCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if e.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, e.Timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killTree(cmd.Process.Pid) }
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return "", &CommandSpawnError{Command: command, Err: err}
	}
	err := cmd.Wait()
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &CommandTimedOutError{Command: command, Timeout: e.Timeout}
	}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			return "", &CommandFailedError{
				Command:  command,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(strings.ToValidUTF8(stderr.String(), "�")),
			}
		case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success():
			// exited cleanly but a descendant kept stdout open
		default:
			return "", &CommandSpawnError{Command: command, Err: err}
		}
	}
	return strings.ToValidUTF8(stdout.String(), "�"), nil
}

// killTree SIGKILLs the process group led by pid plus any descendants that
// moved to another group.
func killTree(pid int) error {
	strays := descendants(int32(pid))
	err := unix.Kill(-pid, unix.SIGKILL)
	for _, p := range strays {
		_ = p.Kill()
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	if err != nil {
		return os.ErrProcessDone
	}
	return nil
}

func descendants(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}
