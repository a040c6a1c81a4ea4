// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about repair runs, identifier resolution, cache operations
// and bazel invocations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the packages emitting
// events never import a backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRepairHooks(&myRepairHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Repair().OnInspectStart(ctx, target)
//	// ... build and classify ...
//	observability.Repair().OnInspectComplete(ctx, target, kind, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Repair Hooks
// =============================================================================

// RepairHooks receives events from the repair orchestrator.
type RepairHooks interface {
	// Inspection events, one pair per target.
	OnInspectStart(ctx context.Context, target string)
	OnInspectComplete(ctx context.Context, target, kind string, duration time.Duration, err error)

	// OnEdit records a rewritten BUILD file.
	OnEdit(ctx context.Context, path, target string, added, removed int)
}

// =============================================================================
// Resolve Hooks
// =============================================================================

// ResolveHooks receives events from identifier resolution.
type ResolveHooks interface {
	// OnResolve records one resolution that was not answered from memory.
	// rule names the dispatch rule that produced the answer.
	OnResolve(ctx context.Context, raw, rule string, resolved bool, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Bazel Hooks
// =============================================================================

// BazelHooks receives events from build tool invocations.
type BazelHooks interface {
	// OnInvoke records a query or build about to run.
	OnInvoke(ctx context.Context, command, arg string)

	// OnComplete records a finished invocation. err is nil for failed builds
	// whose failure was allowed.
	OnComplete(ctx context.Context, command, arg string, lines int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRepairHooks is a no-op implementation of RepairHooks.
type NoopRepairHooks struct{}

func (NoopRepairHooks) OnInspectStart(context.Context, string) {}
func (NoopRepairHooks) OnInspectComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopRepairHooks) OnEdit(context.Context, string, string, int, int) {}

// NoopResolveHooks is a no-op implementation of ResolveHooks.
type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolve(context.Context, string, string, bool, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopBazelHooks is a no-op implementation of BazelHooks.
type NoopBazelHooks struct{}

func (NoopBazelHooks) OnInvoke(context.Context, string, string) {}
func (NoopBazelHooks) OnComplete(context.Context, string, string, int, time.Duration, error) {
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	repairHooks  RepairHooks  = NoopRepairHooks{}
	resolveHooks ResolveHooks = NoopResolveHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	bazelHooks   BazelHooks   = NoopBazelHooks{}
	hooksMu      sync.RWMutex
)

// SetRepairHooks registers custom repair hooks.
// This should be called once at application startup before any repair runs.
func SetRepairHooks(h RepairHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		repairHooks = h
	}
}

// SetResolveHooks registers custom resolve hooks.
func SetResolveHooks(h ResolveHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolveHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetBazelHooks registers custom bazel hooks.
func SetBazelHooks(h BazelHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		bazelHooks = h
	}
}

// Repair returns the registered repair hooks.
func Repair() RepairHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return repairHooks
}

// Resolve returns the registered resolve hooks.
func Resolve() ResolveHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolveHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Bazel returns the registered bazel hooks.
func Bazel() BazelHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return bazelHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	repairHooks = NoopRepairHooks{}
	resolveHooks = NoopResolveHooks{}
	cacheHooks = NoopCacheHooks{}
	bazelHooks = NoopBazelHooks{}
}
