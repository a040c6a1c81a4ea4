// Package detect classifies the output of a Bazel build into a [Failure].
//
// The detector recognizes four diagnostics, checked in priority order:
//
//  1. strict deps reported by the Starlark rules
//     ("** Please add the following dependencies to <target>:" followed by
//     "- <identifier>" lines)
//  2. unused deps ("** Please remove the following dependencies from
//     <target>:", same list grammar, optionally prefixed with "INFO:")
//  3. strict deps reported by the Java compiler
//     ("** Please add the following dependencies:" with space-separated
//     identifiers and the target after " to ")
//  4. unresolved references (a line containing "unresolved reference"
//     followed by an "import ..." line)
//
// Output with an "ERROR:" line but none of these is [Unknown]; anything else
// is [NoFailure]. Only the identifiers of the winning diagnostic are
// resolved.
package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depfix/pkg/bazel"
	"github.com/matzehuels/depfix/pkg/label"
	"github.com/matzehuels/depfix/pkg/resolve"
)

const (
	addMarker     = "** Please add the following dependencies to"
	removeMarker  = "** Please remove the following dependencies from"
	javaAddMarker = "** Please add the following dependencies:"
	unresolvedRef = "unresolved reference"
	errorMarker   = "ERROR:"
)

// Resolver interprets raw identifiers. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolve.InterpretedTarget, error)
}

// Detector builds targets and classifies the result.
type Detector struct {
	client   bazel.Client
	resolver Resolver
	logger   *log.Logger
}

// New creates a Detector. If logger is nil, log.Default() is used.
func New(client bazel.Client, resolver Resolver, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Default()
	}
	return &Detector{client: client, resolver: resolver, logger: logger}
}

// Detect builds target, allowing the build to fail, and classifies its
// output. Errors come only from the build client or the resolver; a failed
// build is a Failure value.
func (d *Detector) Detect(ctx context.Context, target string) (Failure, error) {
	lines, err := d.client.Build(ctx, target, false, true)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", target, err)
	}
	f, err := d.Classify(ctx, target, lines)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("classified build", "target", target, "kind", f.Kind(), "lines", len(lines))
	return f, nil
}

// Classify classifies build output lines produced for the requested target.
func (d *Detector) Classify(ctx context.Context, requested string, lines []string) (Failure, error) {
	target := label.Normalize(requested)

	if owner, ids := scanList(lines, addMarker, false); len(ids) > 0 {
		ts, err := d.resolveAll(ctx, ids)
		if err != nil {
			return nil, err
		}
		return StrictDeps{Target: attribute(owner, target), ToAdd: ts}, nil
	}

	if owner, ids := scanList(lines, removeMarker, true); len(ids) > 0 {
		ts, err := d.resolveAll(ctx, ids)
		if err != nil {
			return nil, err
		}
		return UnusedDeps{Target: attribute(owner, target), ToRemove: ts}, nil
	}

	if owner, ids := scanJava(lines); len(ids) > 0 {
		ts, err := d.resolveAll(ctx, ids)
		if err != nil {
			return nil, err
		}
		return StrictDeps{Target: attribute(owner, target), ToAdd: ts}, nil
	}

	if imports := scanUnresolved(lines); len(imports) > 0 {
		return UnresolvedReferences{Target: target, Imports: stringSet(imports)}, nil
	}

	for _, line := range lines {
		if strings.Contains(line, errorMarker) {
			return Unknown{Target: target}, nil
		}
	}
	return NoFailure{}, nil
}

func (d *Detector) resolveAll(ctx context.Context, ids []string) ([]resolve.InterpretedTarget, error) {
	ts := make([]resolve.InterpretedTarget, 0, len(ids))
	for _, id := range ids {
		t, err := d.resolver.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return targetSet(ts), nil
}

// attribute picks the target a diagnostic names over the requested one.
func attribute(owner, requested string) string {
	if owner == "" {
		return requested
	}
	return label.Normalize(owner)
}

// scanList finds the first line starting with marker and returns the target
// named after it together with the identifiers of the "- " lines that
// follow.
func scanList(lines []string, marker string, stripInfo bool) (owner string, ids []string) {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		if stripInfo {
			s = strings.TrimSpace(strings.TrimPrefix(s, "INFO:"))
		}
		return s
	}

	for i, line := range lines {
		rest, ok := strings.CutPrefix(clean(line), marker)
		if !ok {
			continue
		}
		owner = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ":"))
		for _, next := range lines[i+1:] {
			id, ok := strings.CutPrefix(clean(next), "- ")
			if !ok {
				break
			}
			if j := strings.Index(id, "Target //"); j >= 0 {
				id = id[:j]
			}
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return owner, ids
	}
	return "", nil
}

// scanJava parses the compiler's strict deps report. Bazel prints the
// marker followed by a "<ids> to <target>" line; a marker carrying " to
// <target>" itself takes its identifiers from the line above instead.
func scanJava(lines []string) (owner string, ids []string) {
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), javaAddMarker) {
			continue
		}
		if i+1 < len(lines) && strings.Contains(lines[i+1], " to ") {
			next := strings.TrimSpace(lines[i+1])
			deps, _, _ := strings.Cut(next, " to ")
			return afterLastTo(next), strings.Fields(deps)
		}
		if i > 0 {
			return afterLastTo(line), strings.Fields(lines[i-1])
		}
		return "", nil
	}
	return "", nil
}

func afterLastTo(s string) string {
	i := strings.LastIndex(s, " to ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[i+len(" to "):]), ":"))
}

// scanUnresolved collects the import following each unresolved reference.
func scanUnresolved(lines []string) []string {
	var imports []string
	for i := 0; i+1 < len(lines); i++ {
		if !strings.Contains(lines[i], unresolvedRef) || !strings.HasPrefix(lines[i+1], "import") {
			continue
		}
		if _, imp, ok := strings.Cut(lines[i+1], "import "); ok {
			if imp = strings.TrimSpace(imp); imp != "" {
				imports = append(imports, imp)
			}
		}
	}
	return imports
}
