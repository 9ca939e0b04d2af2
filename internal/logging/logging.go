// Package logging builds the process-wide hclog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns a logger named "bridge" at the given level. Unknown levels
// fall back to info.
func New(level string, json bool) hclog.Logger {
	return NewWithOutput(os.Stderr, level, json)
}

// NewWithOutput is New writing to w.
func NewWithOutput(w io.Writer, level string, json bool) hclog.Logger {
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "bridge",
		Level:      lvl,
		Output:     w,
		JSONFormat: json,
	})
}
