// Package logs centralizes the leveled logger used across the instrument
// control core. Every component gets a child logger tagged with its own
// name so log lines can be filtered per device the way the teacher's
// lepton package tagged its own log.Printf calls by subsystem.
package logs

import (
	"os"

	"github.com/charmbracelet/log"
)

var root = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05.000",
})

// For returns a logger scoped to component, e.g. logs.For("valve_a1").
func For(component string) *log.Logger {
	return root.With("component", component)
}

// SetLevel adjusts verbosity for the whole process, mirroring the -v flag
// the teacher's cmd/lepton-grab wires up.
func SetLevel(verbose bool) {
	if verbose {
		root.SetLevel(log.DebugLevel)
		return
	}
	root.SetLevel(log.InfoLevel)
}
