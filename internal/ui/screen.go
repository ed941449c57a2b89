// Package ui draws passes to an ANSI terminal.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/dwatch/internal/model"
	"github.com/Dicklesworthstone/dwatch/internal/styles"
)

// Styler resolves the style and focus flag of a flattened token index.
type Styler interface {
	Style(i int) (style int, focused bool)
}

// Banner is the header line shown above the command output.
type Banner struct {
	Interval  time.Duration
	StyleName string
	Commands  []string
	Focus     fmt.Stringer
}

func (b Banner) String() string {
	s := fmt.Sprintf("Every %d ms, style '%s': %s", b.Interval.Milliseconds(), b.StyleName, strings.Join(b.Commands, " | "))
	if b.Focus != nil {
		if f := b.Focus.String(); f != "" {
			s += " " + f
		}
	}
	return s
}

// Screen buffers one frame and writes it to the terminal on End.
type Screen struct {
	w        *bufio.Writer
	out      *termenv.Output
	styles   *styles.Renderer
	interval time.Duration
}

// NewScreen returns a Screen drawing to w. interval feeds the rate styles.
func NewScreen(w io.Writer, color bool, interval time.Duration) *Screen {
	bw := bufio.NewWriter(w)
	return &Screen{
		w:        bw,
		out:      termenv.NewOutput(bw),
		styles:   styles.NewRenderer(w, color),
		interval: interval,
	}
}

// Begin clears the screen and homes the cursor.
func (s *Screen) Begin() {
	s.out.ClearScreen()
}

// Banner writes the header followed by a blank line.
func (s *Screen) Banner(b Banner) {
	s.writeln(b.String())
	s.writeln("")
}

// Line writes one tokenized line. first is the flattened index of the line's
// first token; the number of tokens written is returned.
func (s *Screen) Line(line model.Line, first int, st Styler) int {
	prev := 0
	for i, r := range line.Ranges {
		_, _ = s.w.WriteString(line.Text[prev:r.Start])
		style, focused := st.Style(first + i)
		_, _ = s.w.WriteString(s.styles.Render(style, line.Numbers[i], s.interval, focused))
		prev = r.End
	}
	s.writeln(line.Text[prev:])
	return len(line.Ranges)
}

// Error writes err in place of a line.
func (s *Screen) Error(err error) {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	s.writeln(s.styles.Error(msg))
}

// End erases whatever a longer previous frame left below the cursor and
// flushes the frame.
func (s *Screen) End() error {
	_, _ = fmt.Fprintf(s.w, termenv.CSI+termenv.EraseDisplaySeq, 0)
	return s.w.Flush()
}

func (s *Screen) writeln(text string) {
	_, _ = s.w.WriteString(text)
	s.out.ClearLineRight()
	_ = s.w.WriteByte('\n')
}
