package detect

import (
	"slices"
	"strings"

	"github.com/matzehuels/depfix/pkg/label"
	"github.com/matzehuels/depfix/pkg/resolve"
)

// Failure is the classification of one target's build. Exactly one of
// [NoFailure], [StrictDeps], [UnusedDeps], [UnresolvedReferences] or
// [Unknown] describes each build; no other implementations exist.
type Failure interface {
	// FailingTarget returns the normalized label the failure is attributed
	// to. It is empty for NoFailure.
	FailingTarget() string
	// Kind returns a short machine-readable name of the variant.
	Kind() string

	failure()
}

// Kind names.
const (
	KindNoFailure            = "no_failure"
	KindStrictDeps           = "strict_deps"
	KindUnusedDeps           = "unused_deps"
	KindUnresolvedReferences = "unresolved_references"
	KindUnknown              = "unknown"
)

// NoFailure means the build succeeded or reported nothing actionable.
type NoFailure struct{}

// StrictDeps means Target uses dependencies it does not declare.
type StrictDeps struct {
	Target string
	ToAdd  []resolve.InterpretedTarget
}

// UnusedDeps means Target declares dependencies it does not use.
type UnusedDeps struct {
	Target   string
	ToRemove []resolve.InterpretedTarget
}

// UnresolvedReferences means Target imports symbols the compiler could not
// find. Imports holds the imported names verbatim.
type UnresolvedReferences struct {
	Target  string
	Imports []string
}

// Unknown means the build failed for a reason depfix does not recognize.
type Unknown struct {
	Target string
}

func (NoFailure) FailingTarget() string              { return "" }
func (f StrictDeps) FailingTarget() string           { return f.Target }
func (f UnusedDeps) FailingTarget() string           { return f.Target }
func (f UnresolvedReferences) FailingTarget() string { return f.Target }
func (f Unknown) FailingTarget() string              { return f.Target }

func (NoFailure) Kind() string            { return KindNoFailure }
func (StrictDeps) Kind() string           { return KindStrictDeps }
func (UnusedDeps) Kind() string           { return KindUnusedDeps }
func (UnresolvedReferences) Kind() string { return KindUnresolvedReferences }
func (Unknown) Kind() string              { return KindUnknown }

func (NoFailure) failure()            {}
func (StrictDeps) failure()           {}
func (UnusedDeps) failure()           {}
func (UnresolvedReferences) failure() {}
func (Unknown) failure()              {}

// Identifiers returns the resolved or unresolved identifiers carried by f.
func Identifiers(f Failure) []resolve.InterpretedTarget {
	switch f := f.(type) {
	case StrictDeps:
		return f.ToAdd
	case UnusedDeps:
		return f.ToRemove
	}
	return nil
}

// Equal reports whether a and b describe the same failure.
func Equal(a, b Failure) bool {
	return Key(a) == Key(b)
}

// Key returns a string that identifies f, suitable for deduplication.
func Key(f Failure) string {
	var b strings.Builder
	b.WriteString(f.Kind())
	b.WriteByte(' ')
	b.WriteString(f.FailingTarget())
	for _, t := range Identifiers(f) {
		b.WriteByte(' ')
		b.WriteString(targetKey(t))
	}
	if u, ok := f.(UnresolvedReferences); ok {
		for _, imp := range u.Imports {
			b.WriteByte(' ')
			b.WriteString(imp)
		}
	}
	return b.String()
}

// Compare orders failures by target label, then by kind, then by key.
func Compare(a, b Failure) int {
	if c := label.Compare(a.FailingTarget(), b.FailingTarget()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	return strings.Compare(Key(a), Key(b))
}

// targetKey is the set identity of an interpreted target: resolved targets
// are equal when their labels are, unknown ones when their raw text is.
func targetKey(t resolve.InterpretedTarget) string {
	if l, err := t.CorrectedTarget(); err == nil {
		return l
	}
	return "?" + t.Raw()
}

// targetSet deduplicates ts and sorts them by label.
func targetSet(ts []resolve.InterpretedTarget) []resolve.InterpretedTarget {
	seen := make(map[string]bool, len(ts))
	out := make([]resolve.InterpretedTarget, 0, len(ts))
	for _, t := range ts {
		if k := targetKey(t); !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b resolve.InterpretedTarget) int {
		return label.Compare(targetKey(a), targetKey(b))
	})
	return out
}

func stringSet(ss []string) []string {
	out := slices.Clone(ss)
	slices.Sort(out)
	return slices.Compact(out)
}
