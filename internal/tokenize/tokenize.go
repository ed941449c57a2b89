// Package tokenize finds signed integer tokens in free text.
package tokenize

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a half-open byte range [Start, End) into a line.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int { return r.End - r.Start }

type state uint8

const (
	neutral state = iota
	atSeparator
	afterSign
	inDigits
)

// Parser extracts numeric token ranges. A token is an optional sign followed
// by one or more ASCII digits, bounded on both sides by a separator rune or a
// string edge.
type Parser struct {
	isSeparator func(rune) bool
}

// New returns a Parser using isSeparator to classify token boundaries.
func New(isSeparator func(rune) bool) *Parser {
	if isSeparator == nil {
		isSeparator = DefaultSeparator
	}
	return &Parser{isSeparator: isSeparator}
}

// DefaultSeparator treats ASCII whitespace and common punctuation as
// boundaries.
func DefaultSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return strings.ContainsRune(".,:;()[]{}<>'`\"|=", r)
}

// Ranges returns the ordered, non-overlapping maximal token ranges of line.
func (p *Parser) Ranges(line string) []Range {
	var (
		out   []Range
		st    = atSeparator
		start int
	)
	for i, r := range line {
		switch st {
		case neutral:
			if p.isSeparator(r) {
				st = atSeparator
			}
		case atSeparator:
			switch {
			case isDigit(r):
				st, start = inDigits, i
			case isSign(r):
				st, start = afterSign, i
			case !p.isSeparator(r):
				st = neutral
			}
		case afterSign:
			switch {
			case isDigit(r):
				st = inDigits
			case isSign(r):
				start = i
			case p.isSeparator(r):
				st = atSeparator
			default:
				st = neutral
			}
		case inDigits:
			switch {
			case p.isSeparator(r):
				out = append(out, Range{Start: start, End: i})
				st = atSeparator
			case !isDigit(r):
				st = neutral
			}
		}
	}
	if st == inDigits {
		out = append(out, Range{Start: start, End: len(line)})
	}
	return out
}

// Complement returns the ranges of [0, size) not covered by xs. xs must be
// ordered and non-overlapping. Empty ranges are never emitted.
func Complement(xs []Range, size int) []Range {
	out := make([]Range, 0, len(xs)+1)
	first := 0
	for _, x := range xs {
		if x.Start > first {
			out = append(out, Range{Start: first, End: x.Start})
		}
		first = x.End
	}
	if size > first {
		out = append(out, Range{Start: first, End: size})
	}
	return out
}

// Chunks returns the literal text between and around the token ranges.
func Chunks(line string, ranges []Range) []string {
	comp := Complement(ranges, len(line))
	out := make([]string, len(comp))
	for i, r := range comp {
		out[i] = line[r.Start:r.End]
	}
	return out
}

// ParseError reports a grammar-matched token that does not fit in an int64.
type ParseError struct {
	Token string
	Range Range
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse number %q at [%d,%d): %v", e.Token, e.Range.Start, e.Range.End, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Values parses every range of line as a base-10 int64.
func Values(line string, ranges []Range) ([]int64, error) {
	out := make([]int64, len(ranges))
	for i, r := range ranges {
		tok := line[r.Start:r.End]
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, &ParseError{Token: tok, Range: r, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isSign(r rune) bool { return r == '+' || r == '-' }
