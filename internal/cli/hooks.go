package cli

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depfix/pkg/observability"
)

// runStats counts the events of one run and logs them at debug level.
// It implements every hook family in pkg/observability.
type runStats struct {
	logger *log.Logger

	inspected   atomic.Int64
	edits       atomic.Int64
	resolved    atomic.Int64
	unresolved  atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	queries     atomic.Int64
	builds      atomic.Int64
	bazelTime   atomic.Int64 // nanoseconds
}

func newRunStats(logger *log.Logger) *runStats {
	return &runStats{logger: logger}
}

// register installs s as the process-wide hooks.
func (s *runStats) register() {
	observability.SetRepairHooks(s)
	observability.SetResolveHooks(s)
	observability.SetCacheHooks(s)
	observability.SetBazelHooks(s)
}

func (s *runStats) OnInspectStart(ctx context.Context, target string) {}

func (s *runStats) OnInspectComplete(ctx context.Context, target, kind string, duration time.Duration, err error) {
	s.inspected.Add(1)
	s.logger.Debug("inspected", "target", target, "kind", kind, "duration", duration.Round(time.Millisecond), "err", err)
}

func (s *runStats) OnEdit(ctx context.Context, path, target string, added, removed int) {
	s.edits.Add(1)
	s.logger.Debug("edited", "path", path, "target", target, "added", added, "removed", removed)
}

func (s *runStats) OnResolve(ctx context.Context, raw, rule string, resolved bool, duration time.Duration) {
	if resolved {
		s.resolved.Add(1)
	} else {
		s.unresolved.Add(1)
	}
	s.logger.Debug("resolved", "raw", raw, "rule", rule, "ok", resolved)
}

func (s *runStats) OnCacheHit(ctx context.Context, keyType string) { s.cacheHits.Add(1) }

func (s *runStats) OnCacheMiss(ctx context.Context, keyType string) { s.cacheMisses.Add(1) }

func (s *runStats) OnCacheSet(ctx context.Context, keyType string, size int) {}

func (s *runStats) OnInvoke(ctx context.Context, command, arg string) {
	switch command {
	case "query":
		s.queries.Add(1)
	case "build":
		s.builds.Add(1)
	}
}

func (s *runStats) OnComplete(ctx context.Context, command, arg string, lines int, duration time.Duration, err error) {
	s.bazelTime.Add(int64(duration))
}

// line formats the counters the way printStats lays out a status line.
func (s *runStats) line() string {
	parts := []string{
		fmt.Sprintf("%d inspected", s.inspected.Load()),
		fmt.Sprintf("%d builds", s.builds.Load()),
		fmt.Sprintf("%d queries", s.queries.Load()),
		fmt.Sprintf("%d resolved", s.resolved.Load()),
	}
	if n := s.unresolved.Load(); n > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d unresolved", n)))
	}
	if n := s.cacheHits.Load(); n > 0 {
		parts = append(parts, styleCached.Render(fmt.Sprintf("%d cached", n)))
	}
	if n := s.edits.Load(); n > 0 {
		parts = append(parts, StyleSuccess.Render(fmt.Sprintf("%d edited", n)))
	}
	parts = append(parts, fmt.Sprintf("bazel %s", time.Duration(s.bazelTime.Load()).Round(time.Millisecond)))

	return "  " + StyleDim.Render(strings.Join(parts, " · "))
}

var (
	_ observability.RepairHooks  = (*runStats)(nil)
	_ observability.ResolveHooks = (*runStats)(nil)
	_ observability.CacheHooks   = (*runStats)(nil)
	_ observability.BazelHooks   = (*runStats)(nil)
)
