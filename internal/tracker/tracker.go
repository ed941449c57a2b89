// Package tracker keeps per-line numeric history across passes and computes
// deltas between consecutive observations of the same line.
package tracker

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/Dicklesworthstone/dwatch/internal/model"
	"github.com/Dicklesworthstone/dwatch/internal/tokenize"
)

// DefaultMaxAge is the number of passes a line may go unseen before Sweep
// forgets it.
const DefaultMaxAge = 16

type lineStats struct {
	values   []int64
	deltas   []int64
	mins     []int64
	maxs     []int64
	lastSeen uint64
}

func newLineStats(n int) *lineStats {
	return &lineStats{
		values: make([]int64, n),
		deltas: make([]int64, n),
		mins:   make([]int64, n),
		maxs:   make([]int64, n),
	}
}

// Tracker maps line keys to their numeric history. It is not safe for
// concurrent use; the scheduler loop owns it.
type Tracker struct {
	parser *tokenize.Parser
	lines  map[model.LineKey]*lineStats
	gen    uint64
}

// New returns an empty Tracker that tokenizes with parser.
func New(parser *tokenize.Parser) *Tracker {
	if parser == nil {
		parser = tokenize.New(tokenize.DefaultSeparator)
	}
	return &Tracker{
		parser: parser,
		lines:  make(map[model.LineKey]*lineStats),
	}
}

// BeginPass advances the generation used by Sweep.
func (t *Tracker) BeginPass() { t.gen++ }

// Len returns the number of tracked line keys.
func (t *Tracker) Len() int { return len(t.lines) }

// Update tokenizes raw, folds its numbers into the history stored for
// (index, fingerprint) and returns the line with current statistics.
func (t *Tracker) Update(index int, raw string) model.Line {
	ranges := t.parser.Ranges(raw)
	values, err := tokenize.Values(raw, ranges)
	if err != nil {
		return model.Line{Text: raw, Err: err}
	}
	key := model.LineKey{Index: index, Fingerprint: Fingerprint(tokenize.Chunks(raw, ranges))}

	st, ok := t.lines[key]
	if !ok {
		st = newLineStats(len(values))
		copy(st.values, values)
		t.lines[key] = st
	}
	st.lastSeen = t.gen

	if ok && len(st.values) == len(values) {
		for i, v := range values {
			d := v - st.values[i]
			st.deltas[i] = d
			st.mins[i] = min(st.mins[i], d)
			st.maxs[i] = max(st.maxs[i], d)
			st.values[i] = v
		}
	} else if ok {
		fresh := newLineStats(len(values))
		copy(fresh.values, values)
		fresh.lastSeen = t.gen
		t.lines[key] = fresh
		st = fresh
	}

	numbers := make([]model.Number, len(values))
	for i := range values {
		numbers[i] = model.Number{
			Value: st.values[i],
			Delta: st.deltas[i],
			Min:   st.mins[i],
			Max:   st.maxs[i],
		}
	}
	return model.Line{Text: raw, Ranges: ranges, Numbers: numbers}
}

// Sweep forgets lines that have not been updated during the last maxAge
// passes and returns how many were dropped.
func (t *Tracker) Sweep(maxAge uint64) int {
	if t.gen <= maxAge {
		return 0
	}
	cutoff := t.gen - maxAge
	dropped := 0
	for k, st := range t.lines {
		if st.lastSeen < cutoff {
			delete(t.lines, k)
			dropped++
		}
	}
	return dropped
}

// Fingerprint hashes chunks in order. Each chunk is length-prefixed so that
// chunk boundaries and empty chunks change the result.
func Fingerprint(chunks []string) uint64 {
	d := xxhash.New()
	var n [binary.MaxVarintLen64]byte
	for _, c := range chunks {
		l := binary.PutUvarint(n[:], uint64(len(c)))
		_, _ = d.Write(n[:l])
		_, _ = d.WriteString(c)
	}
	return d.Sum64()
}
