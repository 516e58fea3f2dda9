package stipple

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// StipplesFunc receives the full stipple vector of one completed iteration.
type StipplesFunc func(stipples []Stipple)

// StatusFunc receives the Status record of one completed iteration.
type StatusFunc func(status Status)

// StatusLine writes per-iteration progress to a terminal. On a TTY it
// rewrites a single line in place; otherwise it prints one line per
// iteration. Wire its Report method to [Stippler.OnStatus] and call Done once
// the run returns.
type StatusLine struct {
	w     io.Writer
	isTTY bool
	wrote bool
}

// NewStatusLine builds a StatusLine for f, probing whether it is a terminal.
func NewStatusLine(f *os.File) *StatusLine {
	return &StatusLine{w: f, isTTY: term.IsTerminal(int(f.Fd()))}
}

// Report implements StatusFunc.
func (l *StatusLine) Report(st Status) {
	line := fmt.Sprintf("iteration %3d   points %6d   splits %5d   merges %5d   hysteresis %.2f",
		st.Iteration, st.Size, st.Splits, st.Merges, st.Hysteresis)
	if l.isTTY {
		fmt.Fprintf(l.w, "\r\x1b[K%s", line)
	} else {
		fmt.Fprintln(l.w, line)
	}
	l.wrote = true
}

// Done terminates the in-place line so later output starts on a fresh one.
func (l *StatusLine) Done() {
	if l.isTTY && l.wrote {
		fmt.Fprintln(l.w)
	}
}
