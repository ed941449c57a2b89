// Package styles holds the fixed, ordered registry of number renderers.
//
// Each style is a pure function of a token's statistics, the poll interval and
// a focus flag. Styles are addressed by name on the command line and by
// position when cycling interactively.
package styles

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/dwatch/internal/model"
)

const arrow = "⟶"

// Terminal colors used by the registry.
var (
	blue   = lipgloss.Color("4")
	red    = lipgloss.Color("1")
	green  = lipgloss.Color("2")
	yellow = lipgloss.Color("3")
	purple = lipgloss.Color("5")
)

type formatFunc func(paint func(string) string, n model.Number, interval time.Duration) string

type style struct {
	name   string
	color  lipgloss.Color
	format formatFunc
}

var registry = [...]style{
	{"default", blue, func(paint func(string) string, n model.Number, _ time.Duration) string {
		return paint(itoa(n.Value))
	}},
	{"delta", red, func(paint func(string) string, n model.Number, _ time.Duration) string {
		s := paint(itoa(n.Value))
		if n.Delta != 0 {
			s += arrow + paint(itoa(n.Delta)) + "/i"
		}
		return s
	}},
	{"rate", red, func(paint func(string) string, n model.Number, interval time.Duration) string {
		s := paint(itoa(n.Value))
		if n.Delta != 0 {
			s += arrow + paint(ftoa(Rate(n.Delta, interval))) + "/s"
		}
		return s
	}},
	{"delta-only", red, func(paint func(string) string, n model.Number, _ time.Duration) string {
		return paint(itoa(n.Delta)) + "/i"
	}},
	{"rate-only", red, func(paint func(string) string, n model.Number, interval time.Duration) string {
		return paint(ftoa(Rate(n.Delta, interval))) + "/s"
	}},
	{"engineering", purple, func(paint func(string) string, n model.Number, interval time.Duration) string {
		s := paint(itoa(n.Value))
		if n.Delta != 0 {
			s += arrow + paint(FormatUnits(Rate(n.Delta, interval), false)) + "/s"
		}
		return s
	}},
	{"networking", green, func(paint func(string) string, n model.Number, interval time.Duration) string {
		s := paint(itoa(n.Value))
		if n.Delta != 0 {
			s += arrow + paint(FormatUnits(Rate(n.Delta*8, interval), true)) + "/s"
		}
		return s
	}},
	{"range", yellow, func(paint func(string) string, n model.Number, _ time.Duration) string {
		s := paint(itoa(n.Value))
		if n.Delta != 0 || n.Min != 0 || n.Max != 0 {
			s += arrow + paint(itoa(n.Delta)) + "/i [" + itoa(n.Min) + "," + itoa(n.Max) + "]"
		}
		return s
	}},
}

// Len returns the number of registered styles.
func Len() int { return len(registry) }

// Names lists style names in registry order.
func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.name
	}
	return out
}

// Name returns the name of the style at position i, wrapping around.
func Name(i int) string { return registry[wrap(i)].name }

// Index returns the position of the named style.
func Index(name string) (int, bool) {
	for i, s := range registry {
		if s.name == name {
			return i, true
		}
	}
	return 0, false
}

// Renderer paints numbers for one output writer.
type Renderer struct {
	r *lipgloss.Renderer
}

// NewRenderer returns a Renderer writing escape sequences suited to w. When
// color is false every style renders plain text.
func NewRenderer(w io.Writer, color bool) *Renderer {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{r: r}
}

// Render formats n with the style at position idx.
func (r *Renderer) Render(idx int, n model.Number, interval time.Duration, focus bool) string {
	s := registry[wrap(idx)]
	ls := r.r.NewStyle().Foreground(s.color).Bold(true)
	if focus {
		ls = ls.Reverse(true)
	}
	return s.format(func(v string) string { return ls.Render(v) }, n, interval)
}

// Error paints an inline error message.
func (r *Renderer) Error(msg string) string {
	return r.r.NewStyle().Foreground(red).Render(msg)
}

// Rate converts a per-interval delta to a per-second rate.
func Rate(delta int64, interval time.Duration) float64 {
	secs := interval.Seconds()
	if secs <= 0 {
		secs = 1
	}
	return float64(delta) / secs
}

const (
	kilo = 1_000.0
	mega = 1_000_000.0
	giga = 1_000_000_000.0
)

// FormatUnits scales v to K/M/G with two decimals. A value exactly at a
// threshold stays in the lower unit. With bits set the suffixes are bit rates.
func FormatUnits(v float64, bits bool) string {
	unit, div := "", 1.0
	switch {
	case v > giga:
		unit, div = "G", giga
	case v > mega:
		unit, div = "M", mega
	case v > kilo:
		unit, div = "K", kilo
	}
	if bits {
		if unit == "" {
			unit = "_"
		}
		unit += "bps"
	}
	return fmt.Sprintf("%.2f%s", v/div, unit)
}

func wrap(i int) int {
	i %= len(registry)
	if i < 0 {
		i += len(registry)
	}
	return i
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Describe returns a help string listing every style.
func Describe() string { return strings.Join(Names(), ", ") }
