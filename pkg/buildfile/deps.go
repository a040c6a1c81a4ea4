package buildfile

import (
	"slices"
	"strings"

	"github.com/matzehuels/depfix/pkg/label"
)

// LineRange is an inclusive range of 0-based line indexes. A range with End
// before Start is empty and marks the insertion point Start.
type LineRange struct {
	Start, End int
}

// Len returns the number of lines in r.
func (r LineRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// ParsedDeps is a snapshot of one target's deps list and the lines it
// occupies. Lines goes stale once the file is rewritten; parse again before
// a second edit.
type ParsedDeps struct {
	// Target is the normalized label the list belongs to.
	Target string
	// Deps holds the list entries in file order, without duplicates.
	Deps  []string
	Lines LineRange
}

// AddDeps returns p with every label in add that is not yet listed appended
// in label order. Labels in the owner's own package are written as ":name".
// The line range is unchanged.
func (p ParsedDeps) AddDeps(add ...string) ParsedDeps {
	out := p
	out.Deps = slices.Clone(p.Deps)
	added := make([]string, 0, len(add))
	for _, l := range add {
		if !p.Contains(l) && !slices.Contains(added, l) {
			added = append(added, l)
		}
	}
	slices.SortFunc(added, label.Compare)
	for _, l := range added {
		out.Deps = append(out.Deps, relative(p.Target, l))
	}
	return out
}

// RemoveDeps returns p without the labels in remove. The line range is
// unchanged.
func (p ParsedDeps) RemoveDeps(remove ...string) ParsedDeps {
	out := p
	out.Deps = slices.DeleteFunc(slices.Clone(p.Deps), func(dep string) bool {
		return slices.ContainsFunc(remove, func(l string) bool {
			return sameDep(p.Target, dep, l)
		})
	})
	return out
}

// Contains reports whether l is listed, comparing canonical forms so that
// "//a:a", "//a" and, within package a, ":a" are the same dep.
func (p ParsedDeps) Contains(l string) bool {
	return slices.ContainsFunc(p.Deps, func(dep string) bool {
		return sameDep(p.Target, dep, l)
	})
}

func sameDep(owner, a, b string) bool {
	return canonical(owner, a) == canonical(owner, b)
}

// canonical expands a package-relative label (":name") against the package
// of owner and normalizes the result.
func canonical(owner, l string) string {
	if len(l) > 0 && l[0] == ':' && owner != "" {
		l = "//" + label.Package(owner) + l
	}
	return label.Normalize(l)
}

// relative spells l as ":name" when it lives in the package of owner.
func relative(owner, l string) string {
	n := label.Normalize(l)
	if owner == "" || !strings.HasPrefix(n, "//") || label.Package(n) != label.Package(owner) {
		return l
	}
	return ":" + label.Name(n)
}
