package bazel

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

// fakeBazel writes a shell script that stands in for the bazel binary.
func fakeBazel(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "bazel")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestClient(t *testing.T, script string) *ExecClient {
	logger := log.New(&strings.Builder{})
	return NewExecClient(t.TempDir(), fakeBazel(t, script), time.Minute, logger)
}

func TestQueryReturnsLabels(t *testing.T) {
	c := newTestClient(t, `
echo "Loading: 0 packages" >&2
echo "//app:app"
echo ""
echo "  //domain:domain  "
`)

	labels, err := c.Query(context.Background(), "//...", false, false)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	want := []string{"//app:app", "//domain:domain"}
	if !slices.Equal(labels, want) {
		t.Errorf("Query() = %v, want %v", labels, want)
	}
}

func TestQuerySkyQueryFlags(t *testing.T) {
	c := newTestClient(t, `echo "$@"`)

	out, err := c.Query(context.Background(), "allrdeps(//a:a_proto,1)", true, false)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("unexpected output %v", out)
	}
	for _, flag := range []string{"query", "--universe_scope=//...", "--order_output=no", "allrdeps(//a:a_proto,1)"} {
		if !strings.Contains(out[0], flag) {
			t.Errorf("args %q missing %q", out[0], flag)
		}
	}
}

func TestQueryFailure(t *testing.T) {
	c := newTestClient(t, `
echo "//partial:result"
echo "ERROR: no such target" >&2
exit 7
`)

	if _, err := c.Query(context.Background(), "somepath(//a/..., @x//:y)", false, false); !depfixerrors.Is(err, depfixerrors.ErrCodeBazel) {
		t.Errorf("expected BAZEL_FAILED, got %v", err)
	}

	labels, err := c.Query(context.Background(), "somepath(//a/..., @x//:y)", false, true)
	if err != nil {
		t.Fatalf("allowFailures query error: %v", err)
	}
	if !slices.Equal(labels, []string{"//partial:result"}) {
		t.Errorf("labels = %v", labels)
	}
}

func TestBuildCapturesDiagnostics(t *testing.T) {
	c := newTestClient(t, `
echo "INFO: Analyzed target"
echo "ERROR: /repo/app/BUILD.bazel:3:1: strict deps" >&2
echo "** Please add the following dependencies to //app:app_lib:" >&2
exit 1
`)

	lines, err := c.Build(context.Background(), "//app:app_lib", false, true)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("Build() returned %d lines: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[2], "** Please add") {
		t.Errorf("last line = %q", lines[2])
	}

	if _, err := c.Build(context.Background(), "//app:app_lib", false, false); !depfixerrors.Is(err, depfixerrors.ErrCodeBazel) {
		t.Errorf("expected BAZEL_FAILED without allowFailures, got %v", err)
	}
}

func TestBuildKeepGoing(t *testing.T) {
	c := newTestClient(t, `echo "$@"`)
	lines, err := c.Build(context.Background(), "//...", true, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lines[0], "--keep_going") || !strings.HasSuffix(lines[0], "-- //...") {
		t.Errorf("args = %q", lines[0])
	}
}

func TestMissingBinaryIsAlwaysAnError(t *testing.T) {
	c := NewExecClient(t.TempDir(), filepath.Join(t.TempDir(), "missing-bazel"), 0, nil)
	if _, err := c.Build(context.Background(), "//...", true, true); !depfixerrors.Is(err, depfixerrors.ErrCodeBazel) {
		t.Errorf("expected BAZEL_FAILED, got %v", err)
	}
	if _, err := c.Query(context.Background(), "//...", false, true); !depfixerrors.Is(err, depfixerrors.ErrCodeBazel) {
		t.Errorf("expected BAZEL_FAILED, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, `exec sleep 5`)
	c.Timeout = 50 * time.Millisecond

	_, err := c.Build(context.Background(), "//...", false, true)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
