package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depfix/pkg/buildinfo"
	"github.com/matzehuels/depfix/pkg/cache"
	"github.com/matzehuels/depfix/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "depfix"

	// resolutionsDir is the cache subdirectory holding persisted resolutions.
	resolutionsDir = "resolutions"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command. The root command itself runs
// a repair; cache management lives under subcommands.
func (c *CLI) RootCommand() *cobra.Command {
	root := c.repairCommand()
	root.Version = buildinfo.Version
	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Cache Factory
// =============================================================================

// openCache opens the resolution cache for backend. File caches live under
// the user cache directory.
func openCache(backend string) (cache.Cache, error) {
	if backend == "" || backend == "none" {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.Disabled("no user cache directory: " + err.Error()), nil
	}
	return cache.Open(backend, filepath.Join(dir, resolutionsDir))
}

// loadConfig reads the repository configuration and applies flag overrides.
func loadConfig(root string, opts *repairOpts) (*config.Config, error) {
	cfg, err := config.Load(root, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.bazel != "" {
		cfg.Bazel.Binary = opts.bazel
	}
	if opts.cache != "" {
		cfg.Cache.Backend = opts.cache
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/depfix/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
