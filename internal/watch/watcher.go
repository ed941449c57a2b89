// Package watch runs the pass loop: sample every command, fold the output
// into the tracker, draw the frame, then sleep until the next deadline or an
// interactive wake-up.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/Dicklesworthstone/dwatch/internal/focus"
	"github.com/Dicklesworthstone/dwatch/internal/model"
	"github.com/Dicklesworthstone/dwatch/internal/persist"
	"github.com/Dicklesworthstone/dwatch/internal/styles"
	"github.com/Dicklesworthstone/dwatch/internal/tracker"
	"github.com/Dicklesworthstone/dwatch/internal/ui"
)

// Sampler runs all commands once.
type Sampler interface {
	Sample(ctx context.Context) model.Pass
}

// Store persists style overrides on exit.
type Store interface {
	Save(key string, styles map[int]int) error
}

// Recorder receives the rates of every token rendered in a pass.
type Recorder interface {
	Row(pass uint64, rates []float64) error
}

// Config holds the loop parameters.
type Config struct {
	Commands []string
	Interval time.Duration
	RunFor   time.Duration // zero runs until terminated
	NoBanner bool
	MaxAge   uint64 // passes an unseen line is remembered; zero uses tracker.DefaultMaxAge
}

// Watcher owns the tracker and drives passes until termination.
type Watcher struct {
	cfg      Config
	sampler  Sampler
	state    *focus.State
	screen   *ui.Screen
	store    Store
	recorder Recorder
	tracker  *tracker.Tracker

	now   func() time.Time
	sched *Schedule
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithRecorder appends per-pass rates to r.
func WithRecorder(r Recorder) Option {
	return func(w *Watcher) { w.recorder = r }
}

// WithTracker replaces the default tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(w *Watcher) { w.tracker = t }
}

// New returns a Watcher. state is shared with the signal listener.
func New(cfg Config, sampler Sampler, state *focus.State, screen *ui.Screen, store Store, opts ...Option) *Watcher {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = tracker.DefaultMaxAge
	}
	w := &Watcher{
		cfg:     cfg,
		sampler: sampler,
		state:   state,
		screen:  screen,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tracker == nil {
		w.tracker = tracker.New(nil)
	}
	return w
}

// Run loops until the run time elapses, a Terminate event arrives or ctx is
// done, then saves the style overrides for the watched commands. The only
// error returned is a failed save.
func (w *Watcher) Run(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	start := w.now()
	w.sched = NewSchedule(start, w.cfg.Interval)
	var end time.Time
	if w.cfg.RunFor > 0 {
		end = start.Add(w.cfg.RunFor)
	}

	for !w.done(ctx, end) {
		w.pass(ctx)
		if w.done(ctx, end) {
			break
		}
		w.wait(ctx, end)
	}

	key := persist.Key(w.cfg.Commands)
	overrides := w.state.Overrides()
	if err := w.store.Save(key, overrides); err != nil {
		log.Error("saving styles failed", "command", key, "err", err)
		return fmt.Errorf("save styles: %w", err)
	}
	log.Debug("styles saved", "command", key, "overrides", len(overrides))
	return nil
}

func (w *Watcher) done(ctx context.Context, end time.Time) bool {
	if w.state.Terminating() || ctx.Err() != nil {
		return true
	}
	return !end.IsZero() && !w.now().Before(end)
}

// wait blocks until the next deadline, the end of the run, a wake-up or ctx.
// Only an expired deadline advances the schedule.
func (w *Watcher) wait(ctx context.Context, end time.Time) {
	deadline, tick := w.sched.Deadline(), true
	if !end.IsZero() && end.Before(deadline) {
		deadline, tick = end, false
	}
	timer := time.NewTimer(deadline.Sub(w.now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-w.state.Wake():
		pslog.Ctx(ctx).Trace("woken early", "deadline", w.sched.Deadline())
	case <-timer.C:
		if tick {
			w.sched.Advance()
		}
	}
}

func (w *Watcher) pass(ctx context.Context) {
	snap := w.state.BeginPass()
	w.tracker.BeginPass()

	w.screen.Begin()
	if !w.cfg.NoBanner {
		w.screen.Banner(ui.Banner{
			Interval:  w.cfg.Interval,
			StyleName: styles.Name(snap.BannerStyle()),
			Commands:  w.cfg.Commands,
			Focus:     snap,
		})
	}

	p := w.sampler.Sample(ctx)

	index, tokens := 0, 0
	var rates []float64
	for _, res := range p.Results {
		if res.Err != nil {
			w.screen.Error(res.Err)
			index++
			continue
		}
		for _, raw := range SplitLines(res.Output) {
			line := w.tracker.Update(index, raw)
			index++
			if line.Err != nil {
				w.screen.Error(line.Err)
				continue
			}
			tokens += w.screen.Line(line, tokens, snap)
			if w.recorder != nil {
				for _, n := range line.Numbers {
					rates = append(rates, styles.Rate(n.Delta, w.cfg.Interval))
				}
			}
		}
	}

	log := pslog.Ctx(ctx)
	if err := w.screen.End(); err != nil {
		log.Debug("frame write failed", "err", err)
	}
	w.state.SetTotal(tokens)
	if dropped := w.tracker.Sweep(w.cfg.MaxAge); dropped > 0 {
		log.Trace("forgot stale lines", "dropped", dropped)
	}
	if w.recorder != nil {
		if err := w.recorder.Row(p.Seq, rates); err != nil {
			log.Warn("data file write failed; recording stopped", "err", err)
			w.recorder = nil
		}
	}
	log.Debug("pass", "pass", p.Seq, "lines", index, "tokens", tokens, "failed", p.Failed())
}

// SplitLines splits command output into lines. A trailing newline does not
// produce an empty last line and CRLF endings are stripped.
func SplitLines(out string) []string {
	if out == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
