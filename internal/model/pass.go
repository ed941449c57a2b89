package model

import (
	"time"

	"github.com/Dicklesworthstone/dwatch/internal/tokenize"
)

// Number is one token's statistics for the current pass.
type Number struct {
	Value int64
	Delta int64 // current - previous at the same position
	Min   int64 // running minimum of Delta
	Max   int64 // running maximum of Delta
}

// LineKey identifies a rendered line across passes.
type LineKey struct {
	Index       int
	Fingerprint uint64
}

// Line is a tokenized output line with its per-token statistics.
// When Err is set, Ranges and Numbers are empty and the line is rendered as an
// inline error.
type Line struct {
	Text    string
	Ranges  []tokenize.Range
	Numbers []Number
	Err     error
}

// CommandResult is the outcome of running one command for one pass.
type CommandResult struct {
	Command string
	Output  string
	Err     error
	Elapsed time.Duration
}

// Pass is the full snapshot of one scheduler iteration, in command order.
type Pass struct {
	Seq      uint64
	Started  time.Time
	Interval time.Duration
	Results  []CommandResult
}

// Failed reports how many commands in the pass returned an error.
func (p Pass) Failed() int {
	n := 0
	for _, r := range p.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
