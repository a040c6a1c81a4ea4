// Package repair drives a depfix run: it expands target patterns, inspects
// every target, and reports or applies the dependency changes the build
// asks for.
//
// # Usage
//
//	o := repair.New(client, detector, editor, logger)
//	o.Out = os.Stdout
//	result, err := o.Run(ctx, []string{"//app/..."}, repair.Fix)
//
// A run is strictly sequential and stops at the first fatal condition.
// Failures it cannot act on (an unrecognized build failure or a dependency
// that does not resolve) abort the run before any BUILD file is touched, and
// every BUILD file to be edited is parsed before the first write.
package repair

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/depfix/pkg/bazel"
	"github.com/matzehuels/depfix/pkg/buildfile"
	"github.com/matzehuels/depfix/pkg/detect"
	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	"github.com/matzehuels/depfix/pkg/observability"
	"github.com/matzehuels/depfix/pkg/resolve"
)

// Closing messages.
const (
	MsgNoIssues   = "No issues found in provided target patterns."
	MsgFixManual  = "Please fix the issues described above and try again."
	MsgFixed      = "Issues were fixed. Please verify that the affected targets now build."
	MsgRerunning  = "Issues were fixed, re-running check to ensure everything has been fixed."
	MsgCannotAuto = "All remaining issues cannot be auto-resolved. Please fix them manually."
)

// Detector classifies one target. *detect.Detector implements it.
type Detector interface {
	Detect(ctx context.Context, target string) (detect.Failure, error)
}

// ReviewFunc may narrow the actionable failures of a fix round before any
// file is edited. Returning an empty slice skips all edits.
type ReviewFunc func(ctx context.Context, failures []detect.Failure) ([]detect.Failure, error)

// Orchestrator runs repair rounds.
type Orchestrator struct {
	Client   bazel.Client
	Detector Detector
	Editor   *buildfile.Editor
	Logger   *log.Logger

	// Out receives the progress and report text. Defaults to os.Stdout.
	Out io.Writer
	// PreBuild builds every pattern with --keep_going before inspecting
	// targets one by one, when more than one target is inspected.
	PreBuild bool
	// Rerun repeats fix rounds until the build is clean or a round reports
	// the same failures as the one before.
	Rerun bool
	// Review is consulted before edits in fix mode.
	Review ReviewFunc
}

// New creates an Orchestrator with pre-building enabled.
func New(client bazel.Client, detector Detector, editor *buildfile.Editor, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Client:   client,
		Detector: detector,
		Editor:   editor,
		Logger:   logger,
		Out:      os.Stdout,
		PreBuild: true,
	}
}

// Run inspects the targets matched by patterns and handles their failures
// according to mode.
func (o *Orchestrator) Run(ctx context.Context, patterns []string, mode OutputMode) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString(), Mode: mode}
	logger := o.Logger.With("run", result.RunID[:8])
	logger.Info("starting run", "mode", mode, "patterns", len(patterns))

	var previous []string
	for {
		result.Rounds++
		keys, err := o.round(ctx, logger, patterns, mode, result)
		result.Duration = time.Since(start)
		if err != nil {
			return result, err
		}

		switch {
		case len(keys) == 0:
			o.println(MsgNoIssues)
		case mode != Fix || result.appliedIn(result.Rounds) == 0:
			o.println(MsgFixManual)
		case previous != nil && slices.Equal(keys, previous):
			o.println(MsgCannotAuto)
		case !o.Rerun:
			o.println(MsgFixed)
		default:
			o.println(MsgRerunning)
			o.println("")
			previous = keys
			continue
		}

		logger.Info("run finished", "rounds", result.Rounds, "fixes", len(result.Changes), "duration", result.Duration.Round(time.Millisecond))
		return result, nil
	}
}

// round runs one expand, inspect and report pass and returns the sorted
// keys of the failures it found.
func (o *Orchestrator) round(ctx context.Context, logger *log.Logger, patterns []string, mode OutputMode, result *Result) ([]string, error) {
	targets, err := o.Expand(ctx, patterns)
	if err != nil {
		return nil, err
	}
	result.Inspected = len(targets)

	o.printf("Trying to build %d total targets from %d pattern(s):\n", len(targets), len(patterns))
	for _, p := range patterns {
		o.printf("- %s\n", p)
	}
	o.println("")

	if o.PreBuild && len(targets) > 1 {
		o.println("Pre-building to improve analyzing performance...")
		for _, p := range patterns {
			if _, err := o.Client.Build(ctx, p, true, true); err != nil {
				return nil, fmt.Errorf("pre-build %s: %w", p, err)
			}
		}
	}

	failures := make([]detect.Failure, 0, len(targets))
	for i, t := range targets {
		o.printf("Inspecting (%d/%d) %s\n", i+1, len(targets), t)
		observability.Repair().OnInspectStart(ctx, t)
		inspectStart := time.Now()
		f, err := o.Detector.Detect(ctx, t)
		kind := ""
		if f != nil {
			kind = f.Kind()
		}
		observability.Repair().OnInspectComplete(ctx, t, kind, time.Since(inspectStart), err)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", t, err)
		}
		failures = append(failures, f)
	}
	if len(targets) > 0 {
		o.println("")
	}

	actionable, err := actionableFailures(failures)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(actionable))
	for i, f := range actionable {
		keys[i] = detect.Key(f)
	}
	logger.Info("inspection finished", "round", result.Rounds, "targets", len(targets), "actionable", len(actionable))

	if mode == Fix && o.Review != nil && len(actionable) > 0 {
		reviewed, err := o.Review(ctx, actionable)
		if err != nil {
			return nil, err
		}
		if len(reviewed) < len(actionable) {
			logger.Info("review skipped failures", "skipped", len(actionable)-len(reviewed))
		}
		actionable = reviewed
	}

	fixes, err := o.plan(actionable, mode, result.Rounds)
	if err != nil {
		return nil, err
	}
	for i := range fixes {
		if err := o.apply(ctx, &fixes[i], mode); err != nil {
			return nil, err
		}
	}
	result.Changes = append(result.Changes, fixes...)
	return keys, nil
}

// Expand evaluates each pattern without its manual-tagged targets and
// returns the union in first-seen order.
func (o *Orchestrator) Expand(ctx context.Context, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var targets []string
	for _, p := range patterns {
		labels, err := o.Client.Query(ctx, ExpandExpr(p), true, false)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", p, err)
		}
		for _, l := range labels {
			if !seen[l] {
				seen[l] = true
				targets = append(targets, l)
			}
		}
	}
	return targets, nil
}

// ExpandExpr returns the query selecting the targets of pattern that are not
// tagged manual.
func ExpandExpr(pattern string) string {
	return fmt.Sprintf("set(%s) - attr(tags, 'manual', %s)", pattern, pattern)
}

// actionableFailures rejects unknown failures and unresolved identifiers and
// returns the remaining failures deduplicated and sorted.
func actionableFailures(failures []detect.Failure) ([]detect.Failure, error) {
	var unknown []string
	for _, f := range failures {
		if u, ok := f.(detect.Unknown); ok {
			unknown = append(unknown, u.Target)
		}
	}
	if len(unknown) > 0 {
		return nil, depfixerrors.New(depfixerrors.ErrCodeUnknownFailure,
			"encountered unknown failures for targets: %s. Please resolve them directly and try again",
			strings.Join(unknown, ", "))
	}

	seen := make(map[string]bool)
	var out []detect.Failure
	var unresolved []string
	for _, f := range failures {
		if _, ok := f.(detect.NoFailure); ok {
			continue
		}
		k := detect.Key(f)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
		for _, t := range detect.Identifiers(f) {
			if resolve.IsUnknown(t) && !slices.Contains(unresolved, t.Raw()) {
				unresolved = append(unresolved, t.Raw())
			}
		}
	}
	if len(unresolved) > 0 {
		return nil, depfixerrors.New(depfixerrors.ErrCodeUnresolvedTarget,
			"could not resolve dependencies: %s. Please resolve them manually and try again",
			strings.Join(unresolved, ", "))
	}
	slices.SortFunc(out, detect.Compare)
	return out, nil
}

// plan computes the change for every failure. In replacement and fix mode
// every BUILD file is located and parsed here, so a malformed file stops the
// run before the first write.
func (o *Orchestrator) plan(failures []detect.Failure, mode OutputMode, round int) ([]Change, error) {
	fixes := make([]Change, 0, len(failures))
	for _, f := range failures {
		fix := Change{Round: round, Failure: f}
		switch f := f.(type) {
		case detect.StrictDeps:
			added, err := resolve.Labels(f.ToAdd)
			if err != nil {
				return nil, depfixerrors.Wrap(depfixerrors.ErrCodeInternal, err, "plan strict deps for %s", f.Target)
			}
			fix.Added = added
		case detect.UnusedDeps:
			removed, err := resolve.Labels(f.ToRemove)
			if err != nil {
				return nil, depfixerrors.Wrap(depfixerrors.ErrCodeInternal, err, "plan unused deps for %s", f.Target)
			}
			fix.Removed = removed
		case detect.UnresolvedReferences:
			fixes = append(fixes, fix)
			continue
		default:
			return nil, depfixerrors.New(depfixerrors.ErrCodeInternal, "unexpected failure %T for %s", f, f.FailingTarget())
		}

		if mode != Deltas {
			path, deps, err := o.parse(f.FailingTarget())
			if err != nil {
				return nil, err
			}
			fix.BuildFile = o.rel(path)
			fix.Before = deps.Deps
			fix.After = deps.AddDeps(fix.Added...).RemoveDeps(fix.Removed...).Deps
		}
		fixes = append(fixes, fix)
	}
	return fixes, nil
}

// apply prints fix and, in fix mode, rewrites its BUILD file from a fresh
// parse.
func (o *Orchestrator) apply(ctx context.Context, fix *Change, mode OutputMode) error {
	target := fix.Failure.FailingTarget()

	if ur, ok := fix.Failure.(detect.UnresolvedReferences); ok {
		o.printf("Add deps to %s (or a dep) for missing imports:\n", target)
		for _, imp := range ur.Imports {
			o.printf(" - %s\n", imp)
		}
		o.println("")
		return nil
	}

	verb, delta := "strict deps to", fix.Added
	if len(fix.Removed) > 0 {
		verb, delta = "unused deps from", fix.Removed
	}

	switch mode {
	case Deltas:
		action := "Add"
		if len(fix.Removed) > 0 {
			action = "Remove"
		}
		o.printf("%s %s %s:\n", action, verb, target)
		printLabels(o.out(), delta, "    ")

	case Replacement:
		o.printf("Replace the deps of %s:\n", target)
		o.printf("  in %s\n", fix.BuildFile)
		o.println("    deps = [")
		printLabels(o.out(), fix.After, "        ")
		o.println("    ],")

	case Fix:
		path, deps, err := o.parse(target)
		if err != nil {
			return err
		}
		updated := deps.AddDeps(fix.Added...).RemoveDeps(fix.Removed...)
		if err := o.Editor.Replace(path, updated); err != nil {
			return err
		}
		fix.Before, fix.After, fix.Applied = deps.Deps, updated.Deps, true
		observability.Repair().OnEdit(ctx, path, target, len(fix.Added), len(fix.Removed))

		action := "Adding"
		if len(fix.Removed) > 0 {
			action = "Removing"
		}
		o.printf("%s %s %s:\n", action, verb, target)
		o.printf("  in %s\n", fix.BuildFile)
		printLabels(o.out(), delta, "    ")
	}
	o.println("")
	return nil
}

func (o *Orchestrator) parse(target string) (string, buildfile.ParsedDeps, error) {
	path, err := o.Editor.Locate(target)
	if err != nil {
		return "", buildfile.ParsedDeps{}, err
	}
	deps, err := o.Editor.RetrieveDeps(path, target)
	if err != nil {
		return "", buildfile.ParsedDeps{}, err
	}
	return path, deps, nil
}

func (o *Orchestrator) rel(path string) string {
	if r, err := filepath.Rel(o.Editor.Root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

func (o *Orchestrator) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o *Orchestrator) printf(format string, args ...any) {
	fmt.Fprintf(o.out(), format, args...)
}

func (o *Orchestrator) println(s string) {
	fmt.Fprintln(o.out(), s)
}

func printLabels(w io.Writer, labels []string, indent string) {
	for _, l := range labels {
		fmt.Fprintf(w, "%s%q,\n", indent, l)
	}
}
