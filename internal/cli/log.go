// Package cli implements the csrconv command-line interface.
//
// This package provides commands for converting raw graph datasets to CSR
// files, post-processing and inspecting those files, and managing the
// conversion cache. The CLI is built using cobra and supports verbose logging
// via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - convert: Convert one dataset, a catalogue entry, or the whole catalogue
//   - weights: Attach random weights to an unweighted CSR file
//   - inspect: Print header, degree summary and validation result of a CSR file
//   - render: Draw a small CSR file with Graphviz
//   - datasets: List catalogue entries and input presets
//   - cache: Manage the conversion cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which adds
// per-window progress of the chunked converter.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Converted 12 datasets (1m4.213s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.elapsed())
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}
