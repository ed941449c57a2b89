// Package focus holds the interactive state shared between the scheduler loop
// and the signal decoding goroutine: the focused token, the global style, the
// per-token style overrides and the termination flag.
//
// A single State lives for the whole process. It is created at startup,
// injected into both goroutines, and its overrides are persisted on exit.
package focus

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
)

// LifetimeLimit is the number of passes focus survives without interaction.
const LifetimeLimit = 5

// Event is a decoded interactive request.
type Event int

const (
	Redraw Event = iota
	CycleFocus
	CycleStyle
	Terminate
)

func (e Event) String() string {
	switch e {
	case Redraw:
		return "redraw"
	case CycleFocus:
		return "cycle-focus"
	case CycleStyle:
		return "cycle-style"
	case Terminate:
		return "terminate"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// State is the process-lifetime interactive state.
type State struct {
	styles int

	global    atomic.Int64
	lifetime  atomic.Int64
	total     atomic.Int64
	terminate atomic.Bool

	mu        sync.RWMutex
	focused   bool
	index     int
	overrides map[int]int

	wake chan struct{}
}

// New returns a State cycling through styles registry entries, starting at
// global style and with the given persisted overrides.
func New(styles, global int, overrides map[int]int) *State {
	if styles < 1 {
		styles = 1
	}
	s := &State{
		styles:    styles,
		overrides: make(map[int]int, len(overrides)),
		wake:      make(chan struct{}, 1),
	}
	s.global.Store(int64(global % styles))
	for k, v := range overrides {
		s.overrides[k] = v % styles
	}
	return s
}

// Handle applies ev and wakes the scheduler loop.
func (s *State) Handle(ev Event) {
	switch ev {
	case Terminate:
		s.terminate.Store(true)
	case CycleFocus:
		s.lifetime.Store(0)
		s.mu.Lock()
		switch {
		case !s.focused:
			s.focused, s.index = true, 0
		case s.total.Load() > 0:
			s.index = (s.index + 1) % int(s.total.Load())
		}
		s.mu.Unlock()
	case CycleStyle:
		s.lifetime.Store(0)
		s.mu.Lock()
		switch cur, ok := s.overrides[s.index]; {
		case !s.focused:
			s.global.Store((s.global.Load() + 1) % int64(s.styles))
		case ok:
			s.overrides[s.index] = (cur + 1) % s.styles
		default:
			s.overrides[s.index] = 1 % s.styles
		}
		s.mu.Unlock()
	}
	s.notify()
}

func (s *State) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake delivers a notification after every handled event. Notifications
// coalesce: several events before the next receive produce one wake-up.
func (s *State) Wake() <-chan struct{} { return s.wake }

// Terminating reports whether termination has been requested.
func (s *State) Terminating() bool { return s.terminate.Load() }

// SetTotal publishes the number of tokens rendered in the last pass.
func (s *State) SetTotal(n int) { s.total.Store(int64(n)) }

// Total returns the last published token count.
func (s *State) Total() int { return int(s.total.Load()) }

// Overrides returns a copy of the per-token style overrides.
func (s *State) Overrides() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.overrides)
}

// BeginPass ages the focus by one pass and returns the view to render with.
// Focus is dropped once the lifetime counter has gone past LifetimeLimit.
func (s *State) BeginPass() Snapshot {
	s.mu.Lock()
	if s.lifetime.Add(1)-1 > LifetimeLimit {
		s.focused = false
	}
	snap := Snapshot{
		Focused:   s.focused,
		Index:     s.index,
		Global:    int(s.global.Load()),
		overrides: maps.Clone(s.overrides),
	}
	s.mu.Unlock()
	return snap
}

// Snapshot is an immutable view of State for one pass.
type Snapshot struct {
	Focused bool
	Index   int
	Global  int

	overrides map[int]int
}

// Style returns the style for token i and whether i is the focused token.
func (s Snapshot) Style(i int) (style int, focused bool) {
	style = s.Global
	if v, ok := s.overrides[i]; ok {
		style = v
	}
	return style, s.Focused && s.Index == i
}

// BannerStyle returns the style of the focused token, or the global style.
func (s Snapshot) BannerStyle() int {
	if !s.Focused {
		return s.Global
	}
	style, _ := s.Style(s.Index)
	return style
}

// String renders the focus marker shown in the banner.
func (s Snapshot) String() string {
	if !s.Focused {
		return ""
	}
	return fmt.Sprintf("(focus:%d)", s.Index)
}
