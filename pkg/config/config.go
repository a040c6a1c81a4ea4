// Package config loads depfix settings from an optional TOML file.
//
// The resolution tables (which external repositories wrap which first-party
// third_party roots, and the handful of repositories whose wrapper target does
// not follow the Maven naming convention) differ between repositories, so
// they live in configuration with defaults matching the Oppia Android layout
// the tool was written for.
//
// Example .depfix.toml:
//
//	build_file_name = "BUILD.bazel"
//
//	[bazel]
//	binary  = "bazelisk"
//	timeout = "45m"
//
//	[resolve]
//	default_root = "//third_party"
//
//	[resolve.maven_roots]
//	"@maven_app"     = "//third_party"
//	"@maven_scripts" = "//scripts/third_party"
//
//	[resolve.overrides]
//	"@kotlitex" = "//third_party:io_github_karino2_kotlitex"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
)

// FileName is the configuration file looked up in the repository root.
const FileName = ".depfix.toml"

// Default values.
const (
	DefaultBinary        = "bazel"
	DefaultTimeout       = 30 * time.Minute
	DefaultBuildFileName = "BUILD.bazel"
	DefaultProtoSuffix   = "_proto"
	DefaultAARMarker     = "/_aar/"
	DefaultRoot          = "//third_party"
	DefaultCacheTTL      = 24 * time.Hour
)

// Config is the complete tool configuration.
type Config struct {
	BuildFileName string  `toml:"build_file_name"`
	Bazel         Bazel   `toml:"bazel"`
	Resolve       Resolve `toml:"resolve"`
	Cache         Cache   `toml:"cache"`
}

// Bazel configures the build client.
type Bazel struct {
	Binary  string   `toml:"binary"`
	Timeout Duration `toml:"timeout"`
	// StartupFlags are passed before the command (e.g. "--output_base=...").
	StartupFlags []string `toml:"startup_flags"`
}

// Resolve holds the identifier resolution tables.
type Resolve struct {
	ProtoSuffix string `toml:"proto_suffix"`
	AARMarker   string `toml:"aar_marker"`
	// DefaultRoot is the first-party wrapper root searched for identifiers
	// that match no other rule.
	DefaultRoot string `toml:"default_root"`
	// MavenRoots maps an external repository to its first-party wrapper root.
	MavenRoots map[string]string `toml:"maven_roots"`
	// Overrides maps an external repository directly to a wrapper label.
	Overrides map[string]string `toml:"overrides"`
	// SubstringOverrides maps any identifier containing the key to a label.
	SubstringOverrides map[string]string `toml:"substring_overrides"`
}

// Cache configures the persistent resolution cache.
type Cache struct {
	// Backend is "none", "file" or a redis:// URL.
	Backend string   `toml:"backend"`
	TTL     Duration `toml:"ttl"`
}

// Duration wraps time.Duration so it can be written as "30m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BuildFileName: DefaultBuildFileName,
		Bazel: Bazel{
			Binary:  DefaultBinary,
			Timeout: Duration{DefaultTimeout},
		},
		Resolve: Resolve{
			ProtoSuffix: DefaultProtoSuffix,
			AARMarker:   DefaultAARMarker,
			DefaultRoot: DefaultRoot,
			MavenRoots: map[string]string{
				"@maven_app":     "//third_party",
				"@maven_scripts": "//scripts/third_party",
			},
			Overrides: map[string]string{
				"@com_google_protobuf_protobuf_javalite": "//third_party:com_google_protobuf_protobuf",
				"@kotlitex":                              "//third_party:io_github_karino2_kotlitex",
				"@guava_android":                         "//third_party:com_google_guava_guava",
				"@circularimageview":                     "//third_party:circularimageview_circular_image_view",
				"@androidsvg":                            "//third_party:com_caverock_androidsvg",
				"@android-spotlight":                     "//third_party:com_github_takusemba_spotlight",
			},
			SubstringOverrides: map[string]string{
				"kotlinx-coroutines-core-jvm": "//third_party:kotlinx-coroutines-core-jvm",
			},
		},
		Cache: Cache{
			Backend: "none",
			TTL:     Duration{DefaultCacheTTL},
		},
	}
}

// Load reads the configuration for a repository.
//
// If path is empty, FileName in root is used when it exists; a missing
// default file is not an error. Values in the file are layered over Default:
// tables in the file replace the corresponding default tables entirely.
func Load(root, path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, depfixerrors.Wrap(depfixerrors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	var file Config
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, depfixerrors.Wrap(depfixerrors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, depfixerrors.New(depfixerrors.ErrCodeInvalidConfig, "unknown keys in %s: %v", path, undecoded)
	}
	cfg.overlay(&file, md)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// overlay copies every key defined in the decoded file onto c.
func (c *Config) overlay(f *Config, md toml.MetaData) {
	set := func(dst, src any, key ...string) {
		if !md.IsDefined(key...) {
			return
		}
		switch d := dst.(type) {
		case *string:
			*d = *src.(*string)
		case *Duration:
			*d = *src.(*Duration)
		case *[]string:
			*d = *src.(*[]string)
		case *map[string]string:
			*d = *src.(*map[string]string)
		}
	}

	set(&c.BuildFileName, &f.BuildFileName, "build_file_name")
	set(&c.Bazel.Binary, &f.Bazel.Binary, "bazel", "binary")
	set(&c.Bazel.Timeout, &f.Bazel.Timeout, "bazel", "timeout")
	set(&c.Bazel.StartupFlags, &f.Bazel.StartupFlags, "bazel", "startup_flags")
	set(&c.Resolve.ProtoSuffix, &f.Resolve.ProtoSuffix, "resolve", "proto_suffix")
	set(&c.Resolve.AARMarker, &f.Resolve.AARMarker, "resolve", "aar_marker")
	set(&c.Resolve.DefaultRoot, &f.Resolve.DefaultRoot, "resolve", "default_root")
	set(&c.Resolve.MavenRoots, &f.Resolve.MavenRoots, "resolve", "maven_roots")
	set(&c.Resolve.Overrides, &f.Resolve.Overrides, "resolve", "overrides")
	set(&c.Resolve.SubstringOverrides, &f.Resolve.SubstringOverrides, "resolve", "substring_overrides")
	set(&c.Cache.Backend, &f.Cache.Backend, "cache", "backend")
	set(&c.Cache.TTL, &f.Cache.TTL, "cache", "ttl")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return depfixerrors.New(depfixerrors.ErrCodeInvalidConfig, format, args...)
	}

	if c.BuildFileName == "" || strings.ContainsAny(c.BuildFileName, `/\`) {
		return invalid("build_file_name must be a plain file name, got %q", c.BuildFileName)
	}
	if c.Bazel.Binary == "" {
		return invalid("bazel.binary cannot be empty")
	}
	if c.Bazel.Timeout.Duration < 0 {
		return invalid("bazel.timeout cannot be negative")
	}
	if c.Resolve.ProtoSuffix == "" || c.Resolve.AARMarker == "" {
		return invalid("resolve.proto_suffix and resolve.aar_marker cannot be empty")
	}
	if !strings.HasPrefix(c.Resolve.DefaultRoot, "//") {
		return invalid("resolve.default_root must be a first-party package, got %q", c.Resolve.DefaultRoot)
	}
	for repo, root := range c.Resolve.MavenRoots {
		if !strings.HasPrefix(repo, "@") {
			return invalid("resolve.maven_roots key %q must be an external repository (@name)", repo)
		}
		if !strings.HasPrefix(root, "//") {
			return invalid("resolve.maven_roots[%q] must be a first-party package, got %q", repo, root)
		}
	}
	for repo, target := range c.Resolve.Overrides {
		if !strings.HasPrefix(repo, "@") {
			return invalid("resolve.overrides key %q must be an external repository (@name)", repo)
		}
		if !strings.HasPrefix(target, "//") {
			return invalid("resolve.overrides[%q] must be a first-party label, got %q", repo, target)
		}
	}
	for needle, target := range c.Resolve.SubstringOverrides {
		if needle == "" || !strings.HasPrefix(target, "//") {
			return invalid("resolve.substring_overrides[%q] = %q is invalid", needle, target)
		}
	}
	return nil
}
