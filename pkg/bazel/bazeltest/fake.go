// Package bazeltest provides a scripted bazel.Client for tests.
package bazeltest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/matzehuels/depfix/pkg/bazel"
)

// Call records one invocation of the fake client.
type Call struct {
	Kind          string // "query" or "build"
	Arg           string // query expression or build target
	SkyQuery      bool
	KeepGoing     bool
	AllowFailures bool
}

// Client is a bazel.Client whose answers are configured up front.
// Unscripted queries return no labels and unscripted builds return no output,
// which the detector reads as a clean build.
type Client struct {
	mu sync.Mutex

	// Queries maps a query expression to its result labels.
	Queries map[string][]string
	// Builds maps a target to the output lines of building it.
	Builds map[string][]string
	// Errors maps a query expression or build target to an error to return.
	Errors map[string]error

	Calls []Call
}

// New creates an empty fake client.
func New() *Client {
	return &Client{
		Queries: make(map[string][]string),
		Builds:  make(map[string][]string),
		Errors:  make(map[string]error),
	}
}

// SetQuery scripts the result of a query expression.
func (c *Client) SetQuery(expr string, labels ...string) *Client {
	c.Queries[expr] = labels
	return c
}

// SetBuild scripts the output of building target. The output is split into
// lines, so it can be written as one multi-line string.
func (c *Client) SetBuild(target, output string) *Client {
	c.Builds[target] = strings.Split(strings.TrimRight(output, "\n"), "\n")
	return c
}

// Query implements bazel.Client.
func (c *Client) Query(ctx context.Context, expr string, withSkyQuery, allowFailures bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Kind: "query", Arg: expr, SkyQuery: withSkyQuery, AllowFailures: allowFailures})
	if err := c.Errors[expr]; err != nil {
		return nil, err
	}
	return append([]string(nil), c.Queries[expr]...), nil
}

// Build implements bazel.Client.
func (c *Client) Build(ctx context.Context, target string, keepGoing, allowFailures bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Kind: "build", Arg: target, KeepGoing: keepGoing, AllowFailures: allowFailures})
	if err := c.Errors[target]; err != nil {
		return nil, err
	}
	return append([]string(nil), c.Builds[target]...), nil
}

// CallsOf returns the recorded calls of one kind.
func (c *Client) CallsOf(kind string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.Calls {
		if call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}

// CountQuery returns how many times expr was queried.
func (c *Client) CountQuery(expr string) int {
	n := 0
	for _, call := range c.CallsOf("query") {
		if call.Arg == expr {
			n++
		}
	}
	return n
}

// String summarizes the recorded calls, for test failure messages.
func (c *Client) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, call := range c.Calls {
		fmt.Fprintf(&b, "%s %s\n", call.Kind, call.Arg)
	}
	return b.String()
}

var _ bazel.Client = (*Client)(nil)
