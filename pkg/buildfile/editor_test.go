package buildfile

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

const fixture = `load("@io_bazel_rules_kotlin//kotlin:android.bzl", "kt_android_library")

kt_android_library(
    name = "foo_lib",
    srcs = ["Foo.kt"],
    deps = [
        "//a:a",
    ],
)

kt_android_library(
    name = "empty",
    srcs = ["Empty.kt"],
    deps = [
    ],
)

kt_android_library(
    name = "oneline",
    deps = ["//a:a", "//b"],
)

kt_android_library(
    name = "after",
    deps = [
        "//c",
    ],
)

kt_android_library(
    name = "nodeps",
)
`

// writeRepo creates a repository with fixture at pkg/BUILD.bazel.
func writeRepo(t *testing.T, content string) (root, path string) {
	t.Helper()
	root = t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	path = filepath.Join(root, "pkg", "BUILD.bazel")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return root, path
}

func newTestEditor(root string) *Editor {
	return NewEditor(root, "", log.New(&strings.Builder{}))
}

func TestLocate(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	for _, target := range []string{"//pkg:foo_lib", "//pkg", "@//pkg:empty"} {
		got, err := e.Locate(target)
		if err != nil {
			t.Fatalf("Locate(%q) error: %v", target, err)
		}
		if got != path {
			t.Errorf("Locate(%q) = %s, want %s", target, got, path)
		}
	}

	for _, target := range []string{"//missing:foo", "@maven_app//:androidx_core_core", ":relative", "//"} {
		if _, err := e.Locate(target); !depfixerrors.Is(err, depfixerrors.ErrCodeBuildFileNotFound) {
			t.Errorf("Locate(%q) = %v, want BUILD_FILE_NOT_FOUND", target, err)
		}
	}
}

func TestLocateCustomFileName(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "BUILD"), []byte(fixture), 0644); err != nil {
		t.Fatal(err)
	}
	e := NewEditor(root, "BUILD", nil)
	got, err := e.Locate("//:foo_lib")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "BUILD" {
		t.Errorf("Locate() = %s", got)
	}
}

func TestRetrieveDeps(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	deps, err := e.RetrieveDeps(path, "//pkg:foo_lib")
	if err != nil {
		t.Fatalf("RetrieveDeps() error: %v", err)
	}
	if !slices.Equal(deps.Deps, []string{"//a:a"}) {
		t.Errorf("Deps = %v", deps.Deps)
	}
	if deps.Lines != (LineRange{Start: 6, End: 6}) {
		t.Errorf("Lines = %+v", deps.Lines)
	}
	if deps.Target != "//pkg:foo_lib" {
		t.Errorf("Target = %q", deps.Target)
	}

	empty, err := e.RetrieveDeps(path, "//pkg:empty")
	if err != nil {
		t.Fatalf("RetrieveDeps(empty) error: %v", err)
	}
	if len(empty.Deps) != 0 || empty.Lines.Len() != 0 || empty.Lines.Start != 14 {
		t.Errorf("empty = %+v", empty)
	}
}

func TestRetrieveDepsMalformed(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	tests := []struct {
		name   string
		target string
	}{
		{"missing name", "//pkg:nothere"},
		{"missing deps", "//pkg:nodeps"},
		{"deps on one line", "//pkg:oneline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RetrieveDeps(path, tt.target)
			if !depfixerrors.Is(err, depfixerrors.ErrCodeMalformedBuildFile) {
				t.Errorf("RetrieveDeps(%q) = %v, want MALFORMED_BUILD_FILE", tt.target, err)
			}
		})
	}
}

func TestRetrieveDepsWithoutVerifyMisreadsOneLineDeps(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)
	e.Verify = false

	// The scanner skips the one-line list and picks up the next rule's deps.
	deps, err := e.RetrieveDeps(path, "//pkg:oneline")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(deps.Deps, []string{"//c"}) {
		t.Errorf("Deps = %v", deps.Deps)
	}
}

func TestVerifyRejectsCommentsAndExpressions(t *testing.T) {
	tests := []struct {
		name string
		deps string
	}{
		{"trailing comment", `        "//a:a",  # keep`},
		{"concatenation", `        "//a:" + "a",`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "java_library(\n    name = \"x\",\n    deps = [\n" + tt.deps + "\n    ],\n)\n"
			root, path := writeRepo(t, content)
			if _, err := newTestEditor(root).RetrieveDeps(path, "//pkg:x"); !depfixerrors.Is(err, depfixerrors.ErrCodeMalformedBuildFile) {
				t.Errorf("expected MALFORMED_BUILD_FILE, got %v", err)
			}
		})
	}
}

func TestReplaceRoundTrip(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	deps, err := e.RetrieveDeps(path, "//pkg:foo_lib")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Replace(path, deps.AddDeps("//x:y")); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}

	again, err := e.RetrieveDeps(path, "//pkg:foo_lib")
	if err != nil {
		t.Fatalf("RetrieveDeps() after Replace error: %v", err)
	}
	if !slices.Equal(again.Deps, []string{"//a:a", "//x:y"}) {
		t.Errorf("Deps = %v", again.Deps)
	}

	data, _ := os.ReadFile(path)
	want := strings.Replace(fixture, "        \"//a:a\",\n    ],\n)\n\nkt_android_library(\n    name = \"empty\"",
		"        \"//a:a\",\n        \"//x:y\",\n    ],\n)\n\nkt_android_library(\n    name = \"empty\"", 1)
	if string(data) != want {
		t.Errorf("file after Replace:\n%s\nwant:\n%s", data, want)
	}
}

func TestReplaceWritesSamePackageDepsRelative(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	deps, err := e.RetrieveDeps(path, "//pkg:foo_lib")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Replace(path, deps.AddDeps("//pkg:empty")); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "        \"//a:a\",\n        \":empty\",\n    ],") {
		t.Errorf("unexpected file:\n%s", data)
	}
	again, err := e.RetrieveDeps(path, "//pkg:foo_lib")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Contains("//pkg:empty") {
		t.Errorf("Deps = %v", again.Deps)
	}
}

func TestReplaceEmptyList(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	deps, err := e.RetrieveDeps(path, "//pkg:empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Replace(path, deps.AddDeps("//b", "//a:a")); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "    deps = [\n        \"//a:a\",\n        \"//b\",\n    ],\n)\n\nkt_android_library(\n    name = \"oneline\"") {
		t.Errorf("unexpected file:\n%s", data)
	}

	// Removing everything leaves an empty list that can be filled again.
	deps, err = e.RetrieveDeps(path, "//pkg:empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Replace(path, deps.RemoveDeps("//a:a", "//b")); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != fixture {
		t.Errorf("removing the added deps should restore the file:\n%s", data)
	}
}

func TestReplaceKeepsModeAndNewline(t *testing.T) {
	root, path := writeRepo(t, strings.TrimSuffix(fixture, "\n"))
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}
	e := newTestEditor(root)

	deps, err := e.RetrieveDeps(path, "//pkg:after")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Replace(path, deps.RemoveDeps("//c")); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if strings.HasSuffix(string(data), "\n") {
		t.Error("a file without a trailing newline should not gain one")
	}
}

func TestReplaceRejectsBadRange(t *testing.T) {
	root, path := writeRepo(t, fixture)
	e := newTestEditor(root)

	err := e.Replace(path, ParsedDeps{Deps: []string{"//a"}, Lines: LineRange{Start: 100, End: 101}})
	if !depfixerrors.Is(err, depfixerrors.ErrCodeMalformedBuildFile) {
		t.Errorf("expected MALFORMED_BUILD_FILE, got %v", err)
	}
}
