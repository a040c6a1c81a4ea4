package buildfile

import (
	"slices"

	bzl "github.com/bazelbuild/buildtools/build"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

// verify parses data as Starlark and checks that the deps attribute of the
// rule called name holds exactly the strings found by the textual scan, on
// exactly the scanned lines.
func verify(path string, data []byte, name string, deps ParsedDeps) error {
	malformed := func(format string, args ...any) error {
		return depfixerrors.New(depfixerrors.ErrCodeMalformedBuildFile, "%s: "+format, append([]any{path}, args...)...)
	}

	f, err := bzl.ParseBuild(path, data)
	if err != nil {
		return depfixerrors.Wrap(depfixerrors.ErrCodeMalformedBuildFile, err, "parse %s", path)
	}

	var rule *bzl.Rule
	for _, r := range f.Rules("") {
		if r.Name() == name {
			rule = r
			break
		}
	}
	if rule == nil {
		return malformed("no rule named %q", name)
	}

	list, ok := rule.Attr("deps").(*bzl.ListExpr)
	if !ok {
		return malformed("deps of %q is not a list literal", name)
	}

	var values []string
	first, last := -1, -1
	for _, x := range list.List {
		s, ok := x.(*bzl.StringExpr)
		if !ok {
			return malformed("deps of %q contains a non-string entry", name)
		}
		start, end := s.Span()
		if first < 0 {
			first = start.Line - 1
		}
		if end.Line-1 > last {
			last = end.Line - 1
		}
		if !slices.Contains(values, s.Value) {
			values = append(values, s.Value)
		}
	}

	if !slices.Equal(values, deps.Deps) {
		return malformed("deps of %q read as %q but parse as %q", name, deps.Deps, values)
	}
	if len(values) > 0 && (first != deps.Lines.Start || last != deps.Lines.End) {
		return malformed("deps of %q span lines %d-%d but were read from lines %d-%d",
			name, first+1, last+1, deps.Lines.Start+1, deps.Lines.End+1)
	}
	if len(values) == 0 && deps.Lines.Len() != 0 {
		return malformed("deps of %q is empty but lines %d-%d were read", name, deps.Lines.Start+1, deps.Lines.End+1)
	}
	return nil
}
