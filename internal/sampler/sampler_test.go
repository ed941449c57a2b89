package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRunSuccess(t *testing.T) {
	e := &Executor{Timeout: 5 * time.Second}
	out, err := e.Run(context.Background(), "echo hello; echo world")
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", out)
}

func TestRunLossyOutput(t *testing.T) {
	e := &Executor{Timeout: 5 * time.Second}
	out, err := e.Run(context.Background(), `printf 'a\377b'`)
	require.NoError(t, err)
	require.Equal(t, "a�b", out)
}

func TestRunFailureCarriesStderr(t *testing.T) {
	e := &Executor{Timeout: 5 * time.Second}
	_, err := e.Run(context.Background(), "echo '  boom  ' >&2; exit 3")

	var failed *CommandFailedError
	require.True(t, errors.As(err, &failed), "got %v", err)
	require.Equal(t, 3, failed.ExitCode)
	require.Equal(t, "boom", failed.Stderr)
	require.Contains(t, err.Error(), "stderr: boom")
}

func TestRunFailureWithoutStderr(t *testing.T) {
	e := &Executor{Timeout: 5 * time.Second}
	_, err := e.Run(context.Background(), "exit 7")

	var failed *CommandFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 7, failed.ExitCode)
	require.Empty(t, failed.Stderr)
	require.Contains(t, err.Error(), "exit code: 7")
}

func TestRunSpawnError(t *testing.T) {
	e := &Executor{Shell: filepath.Join(t.TempDir(), "no-such-shell"), Timeout: time.Second}
	_, err := e.Run(context.Background(), "true")

	var spawn *CommandSpawnError
	require.True(t, errors.As(err, &spawn), "got %v", err)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	e := &Executor{Timeout: 200 * time.Millisecond}
	started := time.Now()
	_, err := e.Run(context.Background(), "sleep 10")

	var timedOut *CommandTimedOutError
	require.True(t, errors.As(err, &timedOut), "got %v", err)
	require.Equal(t, 200*time.Millisecond, timedOut.Timeout)
	require.Less(t, time.Since(started), 5*time.Second)
}

func TestRunTimeoutReapsDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	e := &Executor{Timeout: 300 * time.Millisecond}
	_, err := e.Run(context.Background(), fmt.Sprintf("sleep 30 & echo $! > %s; wait", pidFile))

	var timedOut *CommandTimedOutError
	require.True(t, errors.As(err, &timedOut), "got %v", err)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return gone(pid) }, 3*time.Second, 20*time.Millisecond)
}

// gone reports whether pid no longer exists or is only a zombie waiting for
// an init process to reap it.
func gone(pid int) bool {
	if errors.Is(unix.Kill(pid, 0), unix.ESRCH) {
		return true
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && (fields[0] == "Z" || fields[0] == "X")
}

func TestRunIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Executor{Timeout: 5 * time.Second}
	out, err := e.Run(ctx, "sleep 0.1; echo done")
	require.NoError(t, err)
	require.Equal(t, "done\n", out)
}

type fakeRunner struct {
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) Run(_ context.Context, command string) (string, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(50 * time.Millisecond)
	if strings.HasPrefix(command, "fail") {
		return "", &CommandFailedError{Command: command, ExitCode: 1}
	}
	return command + "\n", nil
}

func TestSampleOrderAndIsolation(t *testing.T) {
	runner := &fakeRunner{}
	s := New([]string{"a", "fail-b", "c"}, time.Second, runner)

	pass := s.Sample(context.Background())
	require.Equal(t, uint64(1), pass.Seq)
	require.Len(t, pass.Results, 3)
	require.Equal(t, "a\n", pass.Results[0].Output)
	require.Error(t, pass.Results[1].Err)
	require.Equal(t, "c\n", pass.Results[2].Output)
	require.Equal(t, 1, pass.Failed())
	require.Equal(t, int32(3), runner.peak.Load())

	require.Equal(t, uint64(2), s.Sample(context.Background()).Seq)
}

func TestSampleWithShell(t *testing.T) {
	e := &Executor{Timeout: 300 * time.Millisecond}
	s := New([]string{"echo fast", "sleep 5", "exit 2"}, time.Second, e)

	started := time.Now()
	pass := s.Sample(context.Background())
	require.Less(t, time.Since(started), 4*time.Second)

	require.NoError(t, pass.Results[0].Err)
	require.Equal(t, "fast\n", pass.Results[0].Output)

	var timedOut *CommandTimedOutError
	require.True(t, errors.As(pass.Results[1].Err, &timedOut))

	var failed *CommandFailedError
	require.True(t, errors.As(pass.Results[2].Err, &failed))
	require.Equal(t, 2, failed.ExitCode)
}
