package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depfix/pkg/bazel"
	"github.com/matzehuels/depfix/pkg/buildfile"
	"github.com/matzehuels/depfix/pkg/cache"
	"github.com/matzehuels/depfix/pkg/detect"
	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	"github.com/matzehuels/depfix/pkg/observability"
	"github.com/matzehuels/depfix/pkg/render"
	"github.com/matzehuels/depfix/pkg/repair"
	"github.com/matzehuels/depfix/pkg/report"
	"github.com/matzehuels/depfix/pkg/resolve"
)

// repairOpts holds the command-line flags for a repair run.
type repairOpts struct {
	configPath  string // explicit config file
	bazel       string // bazel binary override
	cache       string // cache backend override: none, file or redis:// URL
	graph       string // write a graph of the changes to this .dot or .svg file
	report      string // write a JSON report of the run to this file
	noPrebuild  bool   // skip the --keep_going build of all patterns
	rerun       bool   // repeat fix rounds until clean
	interactive bool   // review failures before editing
	noVerify    bool   // skip the structural BUILD file check
}

// repairArgs are the validated positional arguments.
type repairArgs struct {
	root     string
	mode     repair.OutputMode
	patterns []string
}

func (c *CLI) repairCommand() *cobra.Command {
	opts := &repairOpts{}

	cmd := &cobra.Command{
		Use:   "depfix <root> mode=deltas|replacement|fix <pattern>...",
		Short: "Depfix repairs the deps of bazel targets",
		Long: `Depfix builds the targets matched by the given patterns one at a time and
repairs the failures it recognizes: missing strict deps, unused deps and
unresolved Kotlin references.

Modes:
  deltas       print the deps to add or remove
  replacement  print the full replacement deps list of each target
  fix          rewrite the BUILD files in place`,
		Example: `  depfix . mode=deltas //app/...
  depfix ~/src/oppia-android mode=fix --rerun //domain/... //utility/...`,
		Args:         validateRepairArgCount,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRepairArgs(args)
			if err != nil {
				return err
			}
			return c.runRepair(cmd.Context(), parsed, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default <root>/.depfix.toml)")
	cmd.Flags().StringVar(&opts.bazel, "bazel", "", "bazel binary (overrides bazel.binary)")
	cmd.Flags().StringVar(&opts.cache, "cache", "", "resolution cache: none, file or a redis:// URL (overrides cache.backend)")
	cmd.Flags().StringVar(&opts.graph, "graph", "", "write a graph of the dependency changes (.dot or .svg)")
	cmd.Flags().StringVar(&opts.report, "report", "", "write a JSON report of the run")
	cmd.Flags().BoolVar(&opts.noPrebuild, "no-prebuild", false, "skip the initial --keep_going build of all patterns")
	cmd.Flags().BoolVar(&opts.rerun, "rerun", false, "in fix mode, repeat until the targets build or no progress is made")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "in fix mode, choose which failures to fix before editing")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "skip the structural check of BUILD files before editing")

	return cmd
}

func validateRepairArgCount(cmd *cobra.Command, args []string) error {
	if len(args) < 3 {
		return depfixerrors.New(depfixerrors.ErrCodeInvalidInput,
			"expected <root> mode=deltas|replacement|fix <pattern>..., got %d argument(s)", len(args))
	}
	return nil
}

// parseRepairArgs validates the positional arguments before any build
// activity.
func parseRepairArgs(args []string) (*repairArgs, error) {
	if err := validateRepairArgCount(nil, args); err != nil {
		return nil, err
	}

	if err := depfixerrors.ValidateRoot(args[0]); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return nil, depfixerrors.Wrap(depfixerrors.ErrCodeInvalidRoot, err, "resolve root %q", args[0])
	}

	value, err := depfixerrors.ValidateModeArg(args[1])
	if err != nil {
		return nil, err
	}
	mode, err := repair.ParseOutputMode(value)
	if err != nil {
		return nil, err
	}

	patterns := args[2:]
	for _, p := range patterns {
		if err := depfixerrors.ValidatePattern(p); err != nil {
			return nil, err
		}
	}

	return &repairArgs{root: root, mode: mode, patterns: patterns}, nil
}

func (c *CLI) runRepair(ctx context.Context, args *repairArgs, opts *repairOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	cfg, err := loadConfig(args.root, opts)
	if err != nil {
		return err
	}

	store, err := openCache(cfg.Cache.Backend)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()
	if nc, ok := store.(*cache.NullCache); ok {
		logger.Debug("resolutions are not cached", "reason", nc.Reason)
	}

	stats := newRunStats(logger)
	stats.register()
	defer observability.Reset()

	execClient := bazel.NewExecClient(args.root, cfg.Bazel.Binary, cfg.Bazel.Timeout.Duration, logger)
	execClient.StartupFlags = cfg.Bazel.StartupFlags
	var client bazel.Client = execClient
	if logger.GetLevel() > log.DebugLevel {
		client = newSpinnerClient(execClient)
	}

	resolver := resolve.New(client, cfg.Resolve, resolve.Options{
		Logger: logger,
		Cache:  store,
		Keyer:  cache.RepoKeyer(args.root),
		TTL:    cfg.Cache.TTL.Duration,
	})
	detector := detect.New(client, resolver, logger)

	editor := buildfile.NewEditor(args.root, cfg.BuildFileName, logger)
	editor.Verify = !opts.noVerify

	orch := repair.New(client, detector, editor, logger)
	orch.PreBuild = !opts.noPrebuild
	orch.Rerun = opts.rerun
	if opts.interactive {
		if args.mode == repair.Fix {
			orch.Review = reviewFailures
		} else {
			printWarning("--interactive only applies to mode=fix")
		}
	}

	result, err := orch.Run(ctx, args.patterns, args.mode)
	if err != nil {
		return err
	}

	if len(result.Changes) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, renderSummary(result))
	}
	if args.mode != repair.Fix && !result.Clean() {
		printNextStep("Apply the changes", fixCommand(args))
	}
	fmt.Fprintln(os.Stderr, stats.line())

	if opts.graph != "" {
		if err := render.Write(ctx, opts.graph, result); err != nil {
			return err
		}
		printFile(opts.graph)
	}
	if opts.report != "" {
		if err := report.ExportJSON(result, opts.report); err != nil {
			return err
		}
		printFile(opts.report)
	}

	prog.done("Repair finished")
	return nil
}

// fixCommand is the command line that applies what a report-only run printed.
func fixCommand(args *repairArgs) string {
	return strings.Join(append([]string{appName, args.root, "mode=fix"}, args.patterns...), " ")
}
