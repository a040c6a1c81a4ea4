package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depfix/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the identifier resolution cache",
		Long: `Manage the identifier resolution cache.

Resolutions are only persisted when the cache backend is "file" (or a Redis
URL), set with --cache or cache.backend in .depfix.toml.`,
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var redisURL string

	cmd := &cobra.Command{
		Use:   "clear [target]...",
		Short: "Clear cached resolutions",
		Long: `Clear cached resolutions.

Without arguments every file cache entry is removed. With raw identifiers
(as printed by the build, e.g. @maven_app//:com_google_truth_truth), only
the entries for those identifiers in the repository given by --root are
removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			if len(args) > 0 || redisURL != "" {
				return clearEntries(cmd.Context(), redisURL, root, args)
			}

			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			count, err := clearDir(filepath.Join(dir, resolutionsDir))
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis", "", "clear entries from this redis:// URL instead of the file cache")
	cmd.Flags().String("root", ".", "repository root the entries belong to")

	return cmd
}

// clearEntries deletes the entries of individual identifiers.
func clearEntries(ctx context.Context, redisURL, root string, raws []string) error {
	if len(raws) == 0 {
		return fmt.Errorf("clearing a redis cache needs at least one identifier")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	backend := "file"
	if redisURL != "" {
		backend = redisURL
	}
	store, err := openCache(backend)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	keyer := cache.RepoKeyer(abs)
	for _, raw := range raws {
		if err := store.Delete(ctx, keyer.ResolutionKey(raw)); err != nil {
			return fmt.Errorf("delete %s: %w", raw, err)
		}
	}
	printSuccess("Cleared %d cached entries", len(raws))
	return nil
}

// clearDir removes every file below dir and the empty directories left
// behind. A missing dir counts as empty.
func clearDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if err := os.Remove(path); err == nil {
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return count, err
	}
	return count, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(filepath.Join(dir, resolutionsDir))
			return nil
		},
	}
}
