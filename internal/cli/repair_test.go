package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	"github.com/matzehuels/depfix/pkg/repair"
)

func TestParseRepairArgs(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "WORKSPACE")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		wantCode depfixerrors.Code
		wantMode repair.OutputMode
	}{
		{"deltas", []string{root, "mode=deltas", "//app/..."}, "", repair.Deltas},
		{"fix with several patterns", []string{root, "mode=FIX", "//app/...", "//domain:domain"}, "", repair.Fix},
		{"replacement", []string{root, "mode=replacement", "@//app:app"}, "", repair.Replacement},
		{"too few args", []string{root, "mode=fix"}, depfixerrors.ErrCodeInvalidInput, 0},
		{"missing root", []string{filepath.Join(root, "nope"), "mode=fix", "//..."}, depfixerrors.ErrCodeInvalidRoot, 0},
		{"root is a file", []string{file, "mode=fix", "//..."}, depfixerrors.ErrCodeInvalidRoot, 0},
		{"no mode prefix", []string{root, "fix", "//..."}, depfixerrors.ErrCodeInvalidMode, 0},
		{"unknown mode", []string{root, "mode=repair", "//..."}, depfixerrors.ErrCodeInvalidMode, 0},
		{"query operator", []string{root, "mode=fix", "//app/... + //x"}, depfixerrors.ErrCodeInvalidPattern, 0},
		{"relative pattern", []string{root, "mode=fix", "app/..."}, depfixerrors.ErrCodeInvalidPattern, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRepairArgs(tt.args)
			if tt.wantCode != "" {
				if !depfixerrors.Is(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRepairArgs() error: %v", err)
			}
			if got.mode != tt.wantMode {
				t.Errorf("mode = %v, want %v", got.mode, tt.wantMode)
			}
			if !filepath.IsAbs(got.root) {
				t.Errorf("root %q should be absolute", got.root)
			}
			if !slices.Equal(got.patterns, tt.args[2:]) {
				t.Errorf("patterns = %v", got.patterns)
			}
		})
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".depfix.toml"), []byte("[bazel]\nbinary = \"bazelisk\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(root, &repairOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bazel.Binary != "bazelisk" {
		t.Errorf("Binary = %q, want value from file", cfg.Bazel.Binary)
	}

	cfg, err = loadConfig(root, &repairOpts{bazel: "/opt/bazel", cache: "file"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bazel.Binary != "/opt/bazel" || cfg.Cache.Backend != "file" {
		t.Errorf("flags not applied: %+v %+v", cfg.Bazel, cfg.Cache)
	}

	if _, err := loadConfig(root, &repairOpts{configPath: filepath.Join(root, "missing.toml")}); !depfixerrors.Is(err, depfixerrors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestFixCommand(t *testing.T) {
	got := fixCommand(&repairArgs{root: "/src/app", mode: repair.Deltas, patterns: []string{"//a/...", "//b"}})
	if want := "depfix /src/app mode=fix //a/... //b"; got != want {
		t.Errorf("fixCommand() = %q, want %q", got, want)
	}
}

// fakeBazelBinary writes a script that answers every query with no targets
// and records each invocation in calls.
func fakeBazelBinary(t *testing.T) (binary, calls string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls")
	binary = filepath.Join(dir, "bazel")
	script := "#!/bin/sh\necho \"$@\" >> " + calls + "\n"
	if err := os.WriteFile(binary, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return binary, calls
}

func executeRoot(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	var logs bytes.Buffer
	root := New(&logs, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestRootCommandRunsRepair(t *testing.T) {
	binary, calls := fakeBazelBinary(t)
	repo := t.TempDir()

	if err := executeRoot(t, repo, "mode=deltas", "//app/...", "--bazel", binary, "--no-prebuild"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	data, err := os.ReadFile(calls)
	if err != nil {
		t.Fatalf("bazel was never invoked: %v", err)
	}
	if !strings.Contains(string(data), "query") || !strings.Contains(string(data), "attr(tags, 'manual', //app/...)") {
		t.Errorf("unexpected bazel invocations:\n%s", data)
	}
}

func TestRootCommandValidatesBeforeBazel(t *testing.T) {
	binary, calls := fakeBazelBinary(t)
	repo := t.TempDir()

	err := executeRoot(t, repo, "mode=sideways", "//app/...", "--bazel", binary)
	if !depfixerrors.Is(err, depfixerrors.ErrCodeInvalidMode) {
		t.Fatalf("expected INVALID_MODE, got %v", err)
	}
	if _, err := os.Stat(calls); !os.IsNotExist(err) {
		t.Error("bazel must not run when arguments are invalid")
	}

	if err := executeRoot(t, repo); !depfixerrors.Is(err, depfixerrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for missing arguments, got %v", err)
	}
}

func TestRootCommandWritesGraph(t *testing.T) {
	binary, _ := fakeBazelBinary(t)
	repo := t.TempDir()
	out := filepath.Join(t.TempDir(), "changes.dot")

	if err := executeRoot(t, repo, "mode=deltas", "//app/...", "--bazel", binary, "--graph", out); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "digraph deps {") {
		t.Errorf("unexpected graph:\n%s", data)
	}
}

func TestRootCommandWritesReport(t *testing.T) {
	binary, _ := fakeBazelBinary(t)
	repo := t.TempDir()
	out := filepath.Join(t.TempDir(), "report.json")

	if err := executeRoot(t, repo, "mode=fix", "//app/...", "--bazel", binary, "--report", out); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"mode": "fix"`) || !strings.Contains(string(data), `"clean": true`) {
		t.Errorf("unexpected report:\n%s", data)
	}
}
