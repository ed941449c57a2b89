package watch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/dwatch/internal/focus"
	"github.com/Dicklesworthstone/dwatch/internal/model"
	"github.com/Dicklesworthstone/dwatch/internal/sampler"
	"github.com/Dicklesworthstone/dwatch/internal/styles"
	"github.com/Dicklesworthstone/dwatch/internal/ui"
)

type scriptSampler struct {
	passes [][]model.CommandResult
	calls  int
	after  func(call int)
}

func (s *scriptSampler) Sample(context.Context) model.Pass {
	s.calls++
	res := s.passes[min(s.calls, len(s.passes))-1]
	if s.after != nil {
		s.after(s.calls)
	}
	return model.Pass{Seq: uint64(s.calls), Results: res}
}

func outputs(out ...string) []model.CommandResult {
	res := make([]model.CommandResult, len(out))
	for i, o := range out {
		res[i] = model.CommandResult{Command: "cmd", Output: o}
	}
	return res
}

type memStore struct {
	key   string
	saved map[int]int
	err   error
}

func (m *memStore) Save(key string, s map[int]int) error {
	m.key, m.saved = key, s
	return m.err
}

type rows struct{ got map[uint64][]float64 }

func (r *rows) Row(pass uint64, rates []float64) error {
	if r.got == nil {
		r.got = map[uint64][]float64{}
	}
	r.got[pass] = rates
	return nil
}

func styleIndex(t *testing.T, name string) int {
	t.Helper()
	i, ok := styles.Index(name)
	require.True(t, ok)
	return i
}

func terminateOn(state *focus.State, n int) func(int) {
	return func(call int) {
		if call == n {
			state.Handle(focus.Terminate)
		}
	}
}

func TestRunRendersDeltas(t *testing.T) {
	state := focus.New(styles.Len(), styleIndex(t, "delta"), nil)
	s := &scriptSampler{passes: [][]model.CommandResult{outputs("cpu 10\n"), outputs("cpu 15\n")}}
	s.after = terminateOn(state, 2)
	var buf bytes.Buffer
	store := &memStore{}
	rec := &rows{}
	cfg := Config{Commands: []string{"cat /proc/stat"}, Interval: 5 * time.Millisecond}

	w := New(cfg, s, state, ui.NewScreen(&buf, false, time.Second), store, WithRecorder(rec))
	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, 2, s.calls)
	out := buf.String()
	require.Contains(t, out, "Every 5 ms, style 'delta': cat /proc/stat")
	require.Contains(t, out, "cpu 15⟶5/i")
	require.Equal(t, 1, state.Total())
	require.Equal(t, "cat /proc/stat", store.key)
	require.Equal(t, []float64{0}, rec.got[1])
	require.Equal(t, []float64{1000}, rec.got[2])
}

func TestRunInlineErrorsConsumeLineIndex(t *testing.T) {
	state := focus.New(styles.Len(), 0, nil)
	failed := model.CommandResult{Command: "false", Err: &sampler.CommandFailedError{Command: "false", ExitCode: 1}}
	pass := []model.CommandResult{failed, {Command: "echo", Output: "a 1 b 2\nbad 99999999999999999999\n"}}
	s := &scriptSampler{passes: [][]model.CommandResult{pass}}
	s.after = terminateOn(state, 1)
	var buf bytes.Buffer

	w := New(Config{Commands: []string{"false", "echo"}, Interval: time.Hour, NoBanner: true}, s, state, ui.NewScreen(&buf, false, time.Second), &memStore{})
	require.NoError(t, w.Run(context.Background()))

	out := buf.String()
	require.Contains(t, out, "command 'false' failed with exit code: 1")
	require.Contains(t, out, "a 1 b 2")
	require.Contains(t, out, "99999999999999999999")
	require.NotContains(t, out, "Every")
	require.Equal(t, 2, state.Total(), "error lines carry no tokens")
	require.Equal(t, 1, w.tracker.Len(), "only the parsable line is tracked")
}

func TestWakeRedrawsWithoutAdvancing(t *testing.T) {
	state := focus.New(styles.Len(), 0, nil)
	s := &scriptSampler{passes: [][]model.CommandResult{outputs("x 1")}}
	s.after = func(call int) {
		switch call {
		case 1:
			state.Handle(focus.CycleFocus)
		case 2:
			state.Handle(focus.Terminate)
		}
	}
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	w := New(Config{Commands: []string{"x"}, Interval: time.Hour}, s, state, ui.NewScreen(&buf, false, time.Second), &memStore{})
	w.now = func() time.Time { return t0 }

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wake did not interrupt the wait")
	}
	require.Equal(t, 2, s.calls)
	require.Equal(t, t0.Add(time.Hour), w.sched.Deadline())
	require.Contains(t, buf.String(), "(focus:0)")
}

func TestExpiredWaitAdvancesSchedule(t *testing.T) {
	state := focus.New(styles.Len(), 0, nil)
	s := &scriptSampler{passes: [][]model.CommandResult{outputs("1")}}
	s.after = terminateOn(state, 3)
	interval := 2 * time.Millisecond
	w := New(Config{Commands: []string{"x"}, Interval: interval}, s, state, ui.NewScreen(&bytes.Buffer{}, false, interval), &memStore{})
	var start time.Time
	w.now = func() time.Time {
		now := time.Now()
		if start.IsZero() {
			start = now
		}
		return now
	}

	require.NoError(t, w.Run(context.Background()))
	require.Equal(t, 3, s.calls)
	require.Equal(t, start.Add(3*interval), w.sched.Deadline())
}

func TestRunForStops(t *testing.T) {
	state := focus.New(styles.Len(), 0, nil)
	s := &scriptSampler{passes: [][]model.CommandResult{outputs("1")}}
	w := New(Config{Commands: []string{"x"}, Interval: 10 * time.Millisecond, RunFor: 35 * time.Millisecond}, s, state, ui.NewScreen(&bytes.Buffer{}, false, time.Second), &memStore{})

	started := time.Now()
	require.NoError(t, w.Run(context.Background()))
	require.Less(t, time.Since(started), 2*time.Second)
	require.GreaterOrEqual(t, s.calls, 1)
	require.LessOrEqual(t, s.calls, 4)
}

func TestCancelSavesOverrides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	state := focus.New(styles.Len(), 0, nil)
	s := &scriptSampler{passes: [][]model.CommandResult{outputs("1 2")}}
	s.after = func(int) {
		state.Handle(focus.CycleFocus)
		state.Handle(focus.CycleStyle)
		cancel()
	}
	store := &memStore{}
	w := New(Config{Commands: []string{" uptime "}, Interval: time.Hour}, s, state, ui.NewScreen(&bytes.Buffer{}, false, time.Second), store)

	require.NoError(t, w.Run(ctx))
	require.Equal(t, "uptime", store.key)
	require.Equal(t, map[int]int{0: 1}, store.saved)
}

func TestSaveFailureIsReturned(t *testing.T) {
	state := focus.New(styles.Len(), 0, nil)
	state.Handle(focus.Terminate)
	store := &memStore{err: errors.New("disk full")}
	w := New(Config{Commands: []string{"x"}, Interval: time.Second}, &scriptSampler{}, state, ui.NewScreen(&bytes.Buffer{}, false, time.Second), store)

	err := w.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
}

func TestSplitLines(t *testing.T) {
	require.Nil(t, SplitLines(""))
	require.Equal(t, []string{""}, SplitLines("\n"))
	require.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\n"))
	require.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
	require.False(t, strings.Contains(strings.Join(SplitLines("x\r\n"), ""), "\r"))
}

func TestScheduleDoesNotDrift(t *testing.T) {
	start := time.Unix(1_000, 0)
	s := NewSchedule(start, time.Second)
	require.Equal(t, start.Add(time.Second), s.Deadline())

	// a pass that overran by several intervals still lands on the grid
	s.Advance()
	require.Equal(t, start.Add(2*time.Second), s.Deadline())
	s.Advance()
	require.Equal(t, start.Add(3*time.Second), s.Deadline())
}
