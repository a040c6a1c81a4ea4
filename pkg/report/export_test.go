package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/depfix/pkg/detect"
	"github.com/matzehuels/depfix/pkg/repair"
	"github.com/matzehuels/depfix/pkg/resolve"
)

func sampleResult() *repair.Result {
	return &repair.Result{
		RunID:     "run-1",
		Mode:      repair.Fix,
		Rounds:    1,
		Inspected: 3,
		Duration:  1500 * time.Millisecond,
		Changes: []repair.Change{
			{
				Round: 1,
				Failure: detect.StrictDeps{Target: "//app:lib", ToAdd: []resolve.InterpretedTarget{
					resolve.Resolved{RawIdentifier: "@maven_app//:androidx_core_core", Label: "//third_party:androidx_core_core"},
				}},
				BuildFile: "app/BUILD.bazel",
				Before:    []string{"//a"},
				After:     []string{"//a", "//third_party:androidx_core_core"},
				Added:     []string{"//third_party:androidx_core_core"},
				Applied:   true,
			},
			{Round: 1, Failure: detect.UnresolvedReferences{Target: "//app", Imports: []string{"org.oppia.Foo"}}},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}

	var got run
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if got.RunID != "run-1" || got.Mode != "fix" || got.DurationMS != 1500 || got.Clean {
		t.Errorf("unexpected header: %+v", got)
	}
	if len(got.Changes) != 2 {
		t.Fatalf("got %d fixes", len(got.Changes))
	}
	first := got.Changes[0]
	if first.Kind != detect.KindStrictDeps || !first.Applied || first.BuildFile != "app/BUILD.bazel" {
		t.Errorf("first fix = %+v", first)
	}
	if !slices.Equal(first.Added, []string{"//third_party:androidx_core_core"}) || len(first.Unresolved) != 0 {
		t.Errorf("first fix labels = %+v", first)
	}
	if second := got.Changes[1]; !slices.Equal(second.Imports, []string{"org.oppia.Foo"}) || second.Applied {
		t.Errorf("second fix = %+v", second)
	}
}

func TestWriteJSONUnresolvedIdentifiers(t *testing.T) {
	result := &repair.Result{Mode: repair.Deltas, Rounds: 1, Changes: []repair.Change{{
		Round: 1,
		Failure: detect.UnusedDeps{Target: "//x", ToRemove: []resolve.InterpretedTarget{
			resolve.Unknown{RawIdentifier: "@mystery//:lib"},
		}},
	}}}

	var buf bytes.Buffer
	if err := WriteJSON(result, &buf); err != nil {
		t.Fatal(err)
	}
	var got run
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Changes[0].Unresolved, []string{"@mystery//:lib"}) {
		t.Errorf("Unresolved = %v", got.Changes[0].Unresolved)
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := ExportJSON(sampleResult(), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("invalid JSON:\n%s", data)
	}

	if err := ExportJSON(sampleResult(), filepath.Join(t.TempDir(), "missing", "report.json")); err == nil {
		t.Error("expected error for missing directory")
	}
}
