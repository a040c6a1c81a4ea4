package cli

import (
	"strings"
	"testing"

	"github.com/matzehuels/depfix/pkg/detect"
	"github.com/matzehuels/depfix/pkg/repair"
	"github.com/matzehuels/depfix/pkg/resolve"
)

func TestRenderSummary(t *testing.T) {
	result := &repair.Result{
		RunID:  "0123456789abcdef",
		Mode:   repair.Fix,
		Rounds: 1,
		Changes: []repair.Change{
			{Round: 1, Failure: detect.StrictDeps{Target: "//pkg:foo_lib", ToAdd: nil}, BuildFile: "pkg/BUILD.bazel", Added: []string{"//a:a", "//b"}, Applied: true},
			{Round: 1, Failure: detect.UnresolvedReferences{Target: "//app", Imports: []string{"x.Y"}}},
		},
	}

	out := renderSummary(result)
	for _, want := range []string{"Run 01234567", "//pkg:foo_lib", "strict_deps", "+2 pkg/BUILD.bazel", "fixed", "1 import(s)", "manual"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Round") {
		t.Error("single-round summary should not have a Round column")
	}

	result.Rounds = 2
	if out := renderSummary(result); !strings.Contains(out, "Round") {
		t.Errorf("multi-round summary should have a Round column:\n%s", out)
	}
}

func TestStatus(t *testing.T) {
	unused := detect.UnusedDeps{Target: "//a", ToRemove: []resolve.InterpretedTarget{
		resolve.Resolved{RawIdentifier: "//b:b", Label: "//b"},
	}}
	tests := []struct {
		fix  repair.Change
		mode repair.OutputMode
		want string
	}{
		{repair.Change{Failure: unused, Applied: true}, repair.Fix, "fixed"},
		{repair.Change{Failure: unused}, repair.Fix, "skipped"},
		{repair.Change{Failure: unused}, repair.Deltas, "reported"},
		{repair.Change{Failure: detect.UnresolvedReferences{Target: "//a"}}, repair.Fix, "manual"},
	}
	for _, tt := range tests {
		if got := status(tt.fix, tt.mode); got != tt.want {
			t.Errorf("status(%v, %v) = %q, want %q", tt.fix.Failure.Kind(), tt.mode, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID() = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID() = %q", got)
	}
}
