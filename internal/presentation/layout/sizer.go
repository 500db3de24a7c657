package layout

import (
	"os"

	"github.com/penwyp/go-ici-sync/internal/util"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	minWidth     = 40
	maxWidth     = 160
)

// Sizer reports the usable width of the output terminal.
type Sizer struct {
	fd    int
	fixed int
}

// NewSizer measures the terminal behind stdout.
func NewSizer() *Sizer {
	return &Sizer{fd: int(os.Stdout.Fd())}
}

// NewFixedSizer always reports width. Zero disables truncation.
func NewFixedSizer(width int) *Sizer {
	return &Sizer{fd: -1, fixed: width}
}

// Width returns the line width available for output.
func (s *Sizer) Width() int {
	if s.fd < 0 {
		return s.fixed
	}
	w, _, err := term.GetSize(s.fd)
	if err != nil || w < minWidth {
		return defaultWidth
	}
	if w > maxWidth {
		w = maxWidth
	}
	util.LogDebugf("terminal width %d", w)
	return w
}

// IsTerminal reports whether output goes to a terminal, which decides coloring.
func (s *Sizer) IsTerminal() bool {
	return s.fd >= 0 && term.IsTerminal(s.fd)
}
