package repair

import (
	"slices"
	"time"

	"github.com/matzehuels/depfix/pkg/detect"
)

// Result summarizes a run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	Mode  OutputMode

	// Rounds is the number of detect passes; more than one only with Rerun.
	Rounds int
	// Inspected is the number of targets inspected in the last round.
	Inspected int
	// Changes lists the actionable failures of every round in output order.
	Changes []Change

	Duration time.Duration
}

// Change is one actionable failure and, for strict and unused deps in
// replacement and fix modes, the change to its deps list.
type Change struct {
	Round   int
	Failure detect.Failure

	// BuildFile is the BUILD file path relative to the repository root.
	// Empty in deltas mode and for unresolved references.
	BuildFile string
	Before    []string
	After     []string

	// Added and Removed hold the labels the failure asks for.
	Added   []string
	Removed []string

	// Applied reports whether the BUILD file was rewritten.
	Applied bool
}

// Applied returns the fixes that rewrote a BUILD file.
func (r *Result) Applied() []Change {
	return slices.DeleteFunc(slices.Clone(r.Changes), func(f Change) bool { return !f.Applied })
}

// appliedIn counts the changes of round that rewrote a BUILD file.
func (r *Result) appliedIn(round int) int {
	n := 0
	for _, f := range r.Changes {
		if f.Round == round && f.Applied {
			n++
		}
	}
	return n
}

// Clean reports whether the last round found nothing actionable.
func (r *Result) Clean() bool {
	for _, f := range r.Changes {
		if f.Round == r.Rounds {
			return false
		}
	}
	return true
}
