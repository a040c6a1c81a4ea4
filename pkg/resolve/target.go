package resolve

import (
	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

// InterpretedTarget is the outcome of resolving one raw identifier: either
// [Resolved] or [Unknown]. The set of implementations is closed.
type InterpretedTarget interface {
	// CorrectedTarget returns the canonical label. It fails for Unknown.
	CorrectedTarget() (string, error)
	// Raw returns the identifier as it appeared in the build output.
	Raw() string

	interpreted()
}

// Resolved is an identifier mapped to a canonical first-party label.
type Resolved struct {
	RawIdentifier string
	Label         string
}

// Unknown is an identifier that no resolution rule could map.
type Unknown struct {
	RawIdentifier string
}

func (r Resolved) CorrectedTarget() (string, error) { return r.Label, nil }
func (r Resolved) Raw() string                      { return r.RawIdentifier }
func (Resolved) interpreted()                       {}

func (u Unknown) CorrectedTarget() (string, error) {
	return "", depfixerrors.New(depfixerrors.ErrCodeUnresolvedTarget, "could not resolve %s", u.RawIdentifier)
}
func (u Unknown) Raw() string { return u.RawIdentifier }
func (Unknown) interpreted()  {}

// IsUnknown reports whether t failed to resolve.
func IsUnknown(t InterpretedTarget) bool {
	_, ok := t.(Unknown)
	return ok
}

// Labels returns the corrected labels of ts. It fails on the first Unknown.
func Labels(ts []InterpretedTarget) ([]string, error) {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		l, err := t.CorrectedTarget()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
