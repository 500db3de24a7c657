package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/penwyp/go-ici-sync/internal/util"
)

// TextFormatter renders groups as a chat transcript.
type TextFormatter struct {
	width int
	color bool
}

// NewTextFormatter truncates lines to width cells (0 disables truncation).
func NewTextFormatter(width int, color bool) *TextFormatter {
	return &TextFormatter{width: width, color: color}
}

// line truncates text before coloring so escape codes never count toward the width.
func (f *TextFormatter) line(b *strings.Builder, text, color string) {
	text = util.TruncateToWidth(text, f.width)
	if f.color {
		text = util.Colorize(text, color)
	}
	b.WriteString(text)
	b.WriteByte('\n')
}

func (f *TextFormatter) Format(w io.Writer, v View) error {
	var b strings.Builder

	if v.Title != "" {
		title, color := v.Title, util.ColorBold
		switch {
		case v.Offline:
			title, color = title+" [offline]", util.ColorRed
		case v.Degraded:
			title, color = title+" [degraded]", util.ColorYellow
		}
		f.line(&b, title, color)
		if v.LastError != "" {
			f.line(&b, "last error: "+v.LastError, util.ColorDim)
		}
		f.line(&b, util.Rule(ruleWidth(f.width)), util.ColorDim)
	}

	if len(v.Groups) == 0 {
		f.line(&b, "(no messages)", util.ColorDim)
	}

	for i, g := range v.Groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		f.line(&b, fmt.Sprintf("%s [%s]", g.Author, g.Minute), util.ColorCyan)
		for _, m := range g.Messages {
			f.body(&b, "Q: ", m.Question, "")
			if m.HasAnswer() {
				f.body(&b, "A: ", m.Answer, util.ColorGreen)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// body prints a possibly multi-line text, indenting continuation lines.
func (f *TextFormatter) body(b *strings.Builder, prefix, text, color string) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if i == 0 {
			f.line(b, "  "+prefix+l, color)
			continue
		}
		f.line(b, "     "+l, color)
	}
}

func ruleWidth(width int) int {
	if width <= 0 || width > 40 {
		return 40
	}
	return width
}
