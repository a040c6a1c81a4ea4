// Package buildfile reads and rewrites the deps list of a target in its
// BUILD file.
//
// Edits are textual. The editor expects the layout buildifier produces:
//
//	kt_android_library(
//	    name = "foo_lib",
//	    srcs = ["Foo.kt"],
//	    deps = [
//	        "//a:a",
//	        "//b",
//	    ],
//	)
//
// that is, a `name = "<name>",` line, a later `deps = [` line and one quoted,
// comma-terminated label per line. Anything else is rejected as malformed.
// With verification enabled the textual reading is cross-checked against a
// real Starlark parse, so a file the scanner would misread is an error
// rather than a corrupted edit.
package buildfile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/charmbracelet/log"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	depfixlabel "github.com/matzehuels/depfix/pkg/label"
)

// DefaultFileName is the BUILD file name used when none is configured.
const DefaultFileName = "BUILD.bazel"

// Editor locates and edits BUILD files below a repository root.
type Editor struct {
	Root     string
	FileName string
	// Verify cross-checks every textual scan with a Starlark parse.
	Verify bool
	Logger *log.Logger
}

// NewEditor creates an Editor with verification enabled.
func NewEditor(root, fileName string, logger *log.Logger) *Editor {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Editor{Root: root, FileName: fileName, Verify: true, Logger: logger}
}

// Locate returns the path of the BUILD file owning target.
func (e *Editor) Locate(target string) (string, error) {
	if strings.HasPrefix(target, "@//") {
		target = target[1:]
	}
	l, err := label.Parse(target)
	if err != nil {
		return "", depfixerrors.Wrap(depfixerrors.ErrCodeBuildFileNotFound, err, "cannot parse label %s", target)
	}
	if l.Repo != "" || l.Relative {
		return "", depfixerrors.New(depfixerrors.ErrCodeBuildFileNotFound, "%s is not a label in this repository", target)
	}

	path := filepath.Join(e.Root, filepath.FromSlash(l.Pkg), e.FileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", depfixerrors.New(depfixerrors.ErrCodeBuildFileNotFound, "no %s for %s at %s", e.FileName, target, path)
	}
	return path, nil
}

// RetrieveDeps reads the deps list of target from the BUILD file at path.
func (e *Editor) RetrieveDeps(path, target string) (ParsedDeps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParsedDeps{}, depfixerrors.Wrap(depfixerrors.ErrCodeBuildFileNotFound, err, "read %s", path)
	}

	name := depfixlabel.Name(target)
	deps, err := scanDeps(splitLines(string(data)), target)
	if err != nil {
		return ParsedDeps{}, fmt.Errorf("%s: %w", path, err)
	}

	if e.Verify {
		if err := verify(path, data, name, deps); err != nil {
			return ParsedDeps{}, err
		}
	}
	e.Logger.Debug("parsed deps", "file", path, "target", name, "deps", len(deps.Deps),
		"lines", fmt.Sprintf("%d-%d", deps.Lines.Start+1, deps.Lines.End+1))
	return deps, nil
}

// Replace rewrites the lines in deps.Lines with one line per dep. The indent
// is copied from the first replaced line; an empty list is indented one
// level deeper than its `deps = [` line.
func (e *Editor) Replace(path string, deps ParsedDeps) error {
	info, err := os.Stat(path)
	if err != nil {
		return depfixerrors.Wrap(depfixerrors.ErrCodeBuildFileNotFound, err, "stat %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return depfixerrors.Wrap(depfixerrors.ErrCodeBuildFileNotFound, err, "read %s", path)
	}

	text := string(data)
	lines := splitLines(text)
	r := deps.Lines
	if r.Start < 1 || r.Start > len(lines) || r.End >= len(lines) || r.End < r.Start-1 {
		return depfixerrors.New(depfixerrors.ErrCodeMalformedBuildFile, "%s: line range %d-%d is out of bounds", path, r.Start+1, r.End+1)
	}

	indent := indentOf(lines[r.Start-1]) + "    "
	if r.Len() > 0 {
		indent, _, _ = strings.Cut(lines[r.Start], `"`)
	}

	out := make([]string, 0, len(lines)-r.Len()+len(deps.Deps))
	out = append(out, lines[:r.Start]...)
	for _, dep := range deps.Deps {
		out = append(out, indent+`"`+dep+`",`)
	}
	out = append(out, lines[r.End+1:]...)

	result := strings.Join(out, "\n")
	if strings.HasSuffix(text, "\n") {
		result += "\n"
	}
	if err := os.WriteFile(path, []byte(result), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	e.Logger.Debug("rewrote deps", "file", path, "target", deps.Target, "deps", len(deps.Deps))
	return nil
}

// scanDeps finds the deps list following the `name = "<name>",` line of
// target.
func scanDeps(lines []string, target string) (ParsedDeps, error) {
	nameLine := fmt.Sprintf("name = %q,", depfixlabel.Name(target))
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == nameLine {
			start = i
			break
		}
	}
	if start < 0 {
		return ParsedDeps{}, depfixerrors.New(depfixerrors.ErrCodeMalformedBuildFile, "no line %s", nameLine)
	}

	open := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "deps = [" {
			open = i
			break
		}
	}
	if open < 0 {
		return ParsedDeps{}, depfixerrors.New(depfixerrors.ErrCodeMalformedBuildFile, "no `deps = [` line after %s", nameLine)
	}

	deps := ParsedDeps{
		Target: depfixlabel.Normalize(target),
		Lines:  LineRange{Start: open + 1, End: open},
	}
	for i := open + 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(t, `"`) {
			break
		}
		dep := strings.TrimSuffix(strings.TrimSuffix(t[1:], ","), `"`)
		if !slices.Contains(deps.Deps, dep) {
			deps.Deps = append(deps.Deps, dep)
		}
		deps.Lines.End = i
	}
	return deps, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
