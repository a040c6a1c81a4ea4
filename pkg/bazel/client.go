// Package bazel runs build-graph queries and builds against a Bazel workspace.
//
// The repair core only depends on the [Client] interface; [ExecClient] is the
// implementation that shells out to the bazel binary. Every call is blocking
// and honours context cancellation by killing the subprocess.
package bazel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	"github.com/matzehuels/depfix/pkg/observability"
)

// Client is the build tool capability consumed by the repair core.
type Client interface {
	// Query evaluates a query expression and returns the matching labels.
	// withSkyQuery evaluates it with a universe scope of //... so that
	// reverse-dependency functions (allrdeps) are available. With
	// allowFailures set, a failing query returns whatever labels were printed
	// instead of an error.
	Query(ctx context.Context, expr string, withSkyQuery, allowFailures bool) ([]string, error)

	// Build builds target and returns every line of output, including the
	// diagnostics of a failed build. keepGoing continues past the first
	// failing action. A failed build is only an error when allowFailures is
	// false.
	Build(ctx context.Context, target string, keepGoing, allowFailures bool) ([]string, error)
}

// ExecClient runs the bazel binary inside a workspace.
type ExecClient struct {
	Root         string        // Workspace root (working directory)
	Binary       string        // Path or name of the bazel binary
	StartupFlags []string      // Flags placed before the command
	Timeout      time.Duration // Per-invocation timeout; zero means none
	Logger       *log.Logger
}

// NewExecClient creates a client for the workspace at root.
// If binary is empty, "bazel" is used. If logger is nil, log.Default() is used.
func NewExecClient(root, binary string, timeout time.Duration, logger *log.Logger) *ExecClient {
	if binary == "" {
		binary = "bazel"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExecClient{
		Root:    root,
		Binary:  binary,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Query implements Client.
func (c *ExecClient) Query(ctx context.Context, expr string, withSkyQuery, allowFailures bool) ([]string, error) {
	args := []string{"query", "--noshow_progress"}
	if withSkyQuery {
		args = append(args, "--universe_scope=//...", "--order_output=no")
	}
	args = append(args, expr)

	observability.Bazel().OnInvoke(ctx, "query", expr)
	start := time.Now()
	stdout, stderr, err := c.run(ctx, args)
	if err != nil && (!allowFailures || ctx.Err() != nil || !isExitError(err)) {
		err = depfixerrors.Wrap(depfixerrors.ErrCodeBazel, err, "bazel query %q: %s", expr, lastLine(stderr))
		observability.Bazel().OnComplete(ctx, "query", expr, 0, time.Since(start), err)
		return nil, err
	}
	labels := nonEmptyLines(stdout)
	observability.Bazel().OnComplete(ctx, "query", expr, len(labels), time.Since(start), nil)
	return labels, nil
}

// Build implements Client. Output from stdout and stderr is returned in
// order as one list of lines.
func (c *ExecClient) Build(ctx context.Context, target string, keepGoing, allowFailures bool) ([]string, error) {
	args := []string{"build", "--noshow_progress"}
	if keepGoing {
		args = append(args, "--keep_going")
	}
	args = append(args, "--", target)

	observability.Bazel().OnInvoke(ctx, "build", target)
	start := time.Now()
	combined, _, err := c.run(ctx, args)
	lines := strings.Split(strings.TrimRight(combined, "\n"), "\n")
	if err != nil && (!allowFailures || ctx.Err() != nil || !isExitError(err)) {
		err = depfixerrors.Wrap(depfixerrors.ErrCodeBazel, err, "bazel build %s: %s", target, lastLine(combined))
		observability.Bazel().OnComplete(ctx, "build", target, len(lines), time.Since(start), err)
		return lines, err
	}
	observability.Bazel().OnComplete(ctx, "build", target, len(lines), time.Since(start), nil)
	return lines, nil
}

// run executes bazel with args. For builds, stderr is merged into stdout
// (diagnostics go to stderr); for queries the two are kept apart so that
// progress messages never reach the label list.
func (c *ExecClient) run(ctx context.Context, args []string) (string, string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	full := append(append([]string{}, c.StartupFlags...), args...)
	cmd := exec.CommandContext(ctx, c.Binary, full...)
	cmd.Dir = c.Root
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if args[0] == "build" {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	start := time.Now()
	c.Logger.Debug("running bazel", "args", strings.Join(full, " "))
	err := cmd.Run()
	c.Logger.Debug("bazel finished", "command", args[0], "duration", time.Since(start).Round(time.Millisecond), "err", err)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return stdout.String(), stderr.String(), err
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func lastLine(s string) string {
	lines := nonEmptyLines(s)
	if len(lines) == 0 {
		return "no output"
	}
	return lines[len(lines)-1]
}

// Ensure ExecClient implements Client.
var _ Client = (*ExecClient)(nil)
