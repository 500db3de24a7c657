package formatter

import (
	"io"
	"time"

	"github.com/penwyp/go-ici-sync/internal/data/aggregator"
)

// View is one rendering of a log.
type View struct {
	Title     string             `json:"title"`
	Groups    []aggregator.Group `json:"groups"`
	Offline   bool               `json:"offline"`
	Degraded  bool               `json:"degraded"`
	LastError string             `json:"last_error,omitempty"`
	Rendered  time.Time          `json:"rendered"`
}

// Formatter writes a View to w.
type Formatter interface {
	Format(w io.Writer, v View) error
}

// New returns the formatter named by format ("text" or "json").
func New(format string, width int, color bool) Formatter {
	if format == "json" {
		return NewJSONFormatter()
	}
	return NewTextFormatter(width, color)
}
