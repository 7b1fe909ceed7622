package worker

import "time"

// Mode is the temporal operation an order's window maps to.
type Mode string

const (
	ModeArchive     Mode = "archive"
	ModeFeasibility Mode = "feasibility"
	ModeMixed       Mode = "mixed"
)

// ResolveModes maps a time window against now into the set of applicable
// modes. The three predicates are evaluated independently; exactly one holds
// for any well-formed window. A degenerate window (end before start) is not
// rejected here: a reversed window bracketing now matches both archive and
// feasibility, and the orchestrator runs whatever resolves.
func ResolveModes(start, end, now time.Time) []Mode {
	var modes []Mode
	if end.Before(now) {
		modes = append(modes, ModeArchive)
	}
	if start.After(now) {
		modes = append(modes, ModeFeasibility)
	}
	if !start.After(now) && !now.After(end) {
		modes = append(modes, ModeMixed)
	}
	return modes
}
