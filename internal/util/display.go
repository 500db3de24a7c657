package util

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Terminal colors
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Terminal control sequences
const (
	ClearScreen    = "\033[2J"
	MoveCursorHome = "\033[H"
)

// GetDisplayWidth returns the terminal cell width of text, counting wide runes twice.
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// TruncateToWidth shortens text to at most width cells, ending with "…" when cut.
func TruncateToWidth(text string, width int) string {
	if width <= 0 || GetDisplayWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

// PadToWidth right-pads text with spaces to width cells.
func PadToWidth(text string, width int) string {
	return runewidth.FillRight(text, width)
}

// Colorize wraps text in color unless color is empty.
func Colorize(text, color string) string {
	if color == "" {
		return text
	}
	return fmt.Sprintf("%s%s%s", color, text, ColorReset)
}

// Rule returns a horizontal separator of width cells.
func Rule(width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat("─", width)
}
