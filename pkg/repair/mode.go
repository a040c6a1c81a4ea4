package repair

import (
	"strings"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

// OutputMode selects what a run does with the failures it finds.
type OutputMode int

const (
	// Deltas prints the labels to add or remove.
	Deltas OutputMode = iota
	// Replacement prints the complete new deps list of each failing target.
	Replacement
	// Fix rewrites the BUILD files.
	Fix
)

// ValidModes lists the accepted mode names in display order.
var ValidModes = []string{"deltas", "replacement", "fix"}

// String returns the lower-case mode name.
func (m OutputMode) String() string {
	switch m {
	case Deltas:
		return "deltas"
	case Replacement:
		return "replacement"
	case Fix:
		return "fix"
	}
	return "unknown"
}

// ParseOutputMode parses a mode name, case-insensitively.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deltas":
		return Deltas, nil
	case "replacement":
		return Replacement, nil
	case "fix":
		return Fix, nil
	}
	return 0, depfixerrors.New(depfixerrors.ErrCodeInvalidMode,
		"invalid mode %q (must be one of: %s)", s, strings.Join(ValidModes, ", "))
}
