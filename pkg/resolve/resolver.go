// Package resolve maps raw dependency identifiers reported by the build tool
// onto canonical first-party labels.
//
// Build diagnostics name dependencies in whatever form the toolchain saw them:
// Maven repository labels, paths into extracted AAR archives, generated proto
// libraries or plain first-party labels. A [Resolver] applies a fixed set of
// rules, in order, to turn each of them into the label a BUILD file should
// list:
//
//  1. identifiers ending in the proto suffix resolve to the unique
//     java_lite_proto_library that directly depends on them
//  2. first-party labels ("//..." or "@//...") are normalized as they are
//  3. labels in a mapped Maven repository resolve to the wrapper target
//     under that repository's first-party root
//  4. AAR extraction paths are rewritten to "@repo//:artifact" and resolved
//     by the remaining rules
//  5. a table of irregular repositories maps directly to fixed labels
//  6. anything else resolves to the wrapper under the default root
//
// Identifiers no rule can map become [Unknown] values, never errors. Errors
// are reserved for failures of the build client itself.
package resolve

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depfix/pkg/bazel"
	"github.com/matzehuels/depfix/pkg/cache"
	"github.com/matzehuels/depfix/pkg/config"
	"github.com/matzehuels/depfix/pkg/label"
	"github.com/matzehuels/depfix/pkg/observability"
)

// Rule names reported to observability hooks and debug logs.
const (
	RuleProto      = "proto"
	RuleFirstParty = "first_party"
	RuleMaven      = "maven"
	RuleAAR        = "aar"
	RuleOverride   = "override"
	RuleDefault    = "default"
	RuleCache      = "cache"
)

// Options configures a Resolver.
type Options struct {
	// Logger receives debug output. Defaults to log.Default().
	Logger *log.Logger
	// Cache persists Resolved results between runs. Defaults to a NullCache.
	Cache cache.Cache
	// Keyer builds cache keys. Defaults to cache.NewDefaultKeyer().
	Keyer cache.Keyer
	// TTL is the lifetime of persisted entries. Defaults to cache.TTLResolution.
	TTL time.Duration
}

// Resolver resolves raw identifiers, remembering every answer for its own
// lifetime. A Resolver is not safe for concurrent use.
type Resolver struct {
	client bazel.Client
	rules  config.Resolve
	logger *log.Logger
	store  cache.Cache
	keyer  cache.Keyer
	ttl    time.Duration

	memo map[string]InterpretedTarget
}

// New creates a Resolver that issues queries through client.
func New(client bazel.Client, rules config.Resolve, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL == 0 {
		opts.TTL = cache.TTLResolution
	}
	return &Resolver{
		client: client,
		rules:  rules,
		logger: opts.Logger,
		store:  opts.Cache,
		keyer:  opts.Keyer,
		ttl:    opts.TTL,
		memo:   make(map[string]InterpretedTarget),
	}
}

// Cached returns a copy of the in-memory resolution table, keyed by raw
// identifier.
func (r *Resolver) Cached() map[string]InterpretedTarget {
	return maps.Clone(r.memo)
}

// Resolve interprets raw. Each distinct raw identifier is resolved at most
// once per Resolver; later calls return the remembered answer.
func (r *Resolver) Resolve(ctx context.Context, raw string) (InterpretedTarget, error) {
	if t, ok := r.memo[raw]; ok {
		return t, nil
	}

	key := r.keyer.ResolutionKey(raw)
	if t, ok := r.lookup(ctx, key, raw); ok {
		r.memo[raw] = t
		return t, nil
	}

	start := time.Now()
	t, rule, err := r.interpret(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", raw, err)
	}
	observability.Resolve().OnResolve(ctx, raw, rule, !IsUnknown(t), time.Since(start))

	r.memo[raw] = t
	if res, ok := t.(Resolved); ok {
		r.persist(ctx, key, res)
	}
	return t, nil
}

func (r *Resolver) lookup(ctx context.Context, key, raw string) (InterpretedTarget, bool) {
	data, hit, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("resolution cache read failed", "identifier", raw, "err", err)
		return nil, false
	}
	if !hit || len(data) == 0 {
		observability.Cache().OnCacheMiss(ctx, "resolve")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "resolve")
	observability.Resolve().OnResolve(ctx, raw, RuleCache, true, 0)
	r.logger.Debug("resolved from cache", "identifier", raw, "label", string(data))
	return Resolved{RawIdentifier: raw, Label: string(data)}, true
}

func (r *Resolver) persist(ctx context.Context, key string, res Resolved) {
	if err := r.store.Set(ctx, key, []byte(res.Label), r.ttl); err != nil {
		r.logger.Warn("resolution cache write failed", "identifier", res.RawIdentifier, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "resolve", len(res.Label))
}

// interpret applies the dispatch rules in order.
func (r *Resolver) interpret(ctx context.Context, raw string) (InterpretedTarget, string, error) {
	switch {
	case strings.HasSuffix(raw, r.rules.ProtoSuffix):
		t, err := r.interpretProto(ctx, raw)
		return t, RuleProto, err
	case label.IsFirstParty(raw):
		return resolved(raw, raw), RuleFirstParty, nil
	case r.rules.MavenRoots[label.Repository(raw)] != "":
		t, err := r.wrapperUnder(ctx, raw, raw, r.rules.MavenRoots[label.Repository(raw)])
		return t, RuleMaven, err
	case strings.Contains(raw, r.rules.AARMarker):
		t, _, err := r.interpretExternal(ctx, raw, aarCoordinate(raw, r.rules.AARMarker))
		return t, RuleAAR, err
	}
	return r.interpretExternal(ctx, raw, raw)
}

// interpretExternal resolves an external label id on behalf of raw using the
// Maven, override and default rules.
func (r *Resolver) interpretExternal(ctx context.Context, raw, id string) (InterpretedTarget, string, error) {
	repo := label.Repository(id)
	if root := r.rules.MavenRoots[repo]; root != "" {
		t, err := r.wrapperUnder(ctx, raw, id, root)
		return t, RuleMaven, err
	}
	if target, ok := r.rules.Overrides[repo]; ok {
		return resolved(raw, target), RuleOverride, nil
	}
	for _, needle := range slices.Sorted(maps.Keys(r.rules.SubstringOverrides)) {
		if strings.Contains(id, needle) {
			return resolved(raw, r.rules.SubstringOverrides[needle]), RuleOverride, nil
		}
	}
	t, err := r.wrapperUnder(ctx, raw, id, r.rules.DefaultRoot)
	return t, RuleDefault, err
}

// interpretProto finds the single lite proto library exporting raw.
func (r *Resolver) interpretProto(ctx context.Context, raw string) (InterpretedTarget, error) {
	expr := fmt.Sprintf("kind(java_lite_proto_library,allrdeps(%s,1))", raw)
	r.logger.Debug("resolving proto", "identifier", raw, "query", expr)
	labels, err := r.client.Query(ctx, expr, true, true)
	if err != nil {
		return nil, err
	}
	if len(labels) != 1 {
		r.logger.Debug("proto library is ambiguous", "identifier", raw, "matches", len(labels))
		return Unknown{RawIdentifier: raw}, nil
	}
	return resolved(raw, labels[0]), nil
}

// wrapperUnder finds the first-party wrapper of id below root.
func (r *Resolver) wrapperUnder(ctx context.Context, raw, id, root string) (InterpretedTarget, error) {
	expr := fmt.Sprintf("somepath(%s/..., %s)", root, id)
	r.logger.Debug("resolving wrapper", "identifier", raw, "query", expr)
	labels, err := r.client.Query(ctx, expr, false, true)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return Unknown{RawIdentifier: raw}, nil
	}
	if first := labels[0]; !under(first, root) {
		r.logger.Debug("wrapper outside expected root", "identifier", raw, "label", first, "root", root)
		return Unknown{RawIdentifier: raw}, nil
	}
	return resolved(raw, labels[0]), nil
}

func resolved(raw, l string) Resolved {
	return Resolved{RawIdentifier: raw, Label: label.Normalize(l)}
}

// under reports whether l lies in the package tree rooted at root.
func under(l, root string) bool {
	return l == root || strings.HasPrefix(l, root+"/") || strings.HasPrefix(l, root+":")
}

// aarCoordinate rewrites an AAR extraction path to the external label it was
// extracted from: the segment before the marker names the repository and
// the segment after it the artifact.
//
//	bazel-out/k8-fastbuild/bin/external/maven_app/_aar/androidx_core_core/classes.jar
//	=> @maven_app//:androidx_core_core
func aarCoordinate(raw, marker string) string {
	before, after, _ := strings.Cut(raw, marker)
	repo := before[strings.LastIndex(before, "/")+1:]
	artifact, _, _ := strings.Cut(after, "/")
	return "@" + repo + "//:" + artifact
}
