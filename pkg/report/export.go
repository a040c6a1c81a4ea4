package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/depfix/pkg/detect"
	"github.com/matzehuels/depfix/pkg/repair"
	"github.com/matzehuels/depfix/pkg/resolve"
)

type run struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`
	Rounds     int    `json:"rounds"`
	Inspected  int    `json:"inspected"`
	Clean      bool   `json:"clean"`
	DurationMS int64  `json:"duration_ms"`
	Changes      []fix  `json:"fixes"`
}

type fix struct {
	Round      int      `json:"round"`
	Target     string   `json:"target"`
	Kind       string   `json:"kind"`
	BuildFile  string   `json:"build_file,omitempty"`
	Before     []string `json:"before,omitempty"`
	After      []string `json:"after,omitempty"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
	Imports    []string `json:"imports,omitempty"`
	Applied    bool     `json:"applied"`
}

// WriteJSON encodes result as indented JSON and writes it to w.
func WriteJSON(result *repair.Result, w io.Writer) error {
	out := run{
		RunID:      result.RunID,
		Mode:       result.Mode.String(),
		Rounds:     result.Rounds,
		Inspected:  result.Inspected,
		Clean:      result.Clean(),
		DurationMS: result.Duration.Milliseconds(),
		Changes:      make([]fix, len(result.Changes)),
	}

	for i, f := range result.Changes {
		fx := fix{
			Round:     f.Round,
			Target:    f.Failure.FailingTarget(),
			Kind:      f.Failure.Kind(),
			BuildFile: f.BuildFile,
			Before:    f.Before,
			After:     f.After,
			Added:     f.Added,
			Removed:   f.Removed,
			Applied:   f.Applied,
		}
		for _, t := range detect.Identifiers(f.Failure) {
			if resolve.IsUnknown(t) {
				fx.Unresolved = append(fx.Unresolved, t.Raw())
			}
		}
		if ur, ok := f.Failure.(detect.UnresolvedReferences); ok {
			fx.Imports = ur.Imports
		}
		out.Changes[i] = fx
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes result to a JSON file at path.
func ExportJSON(result *repair.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(result, f)
}
