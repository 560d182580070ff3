package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jukebox/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the audio cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func openCacheStore(ctx *commandContext) (*cache.FSStore, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewFSStore(cfg.Paths.CacheDir)
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, meta := range entries {
				label := meta.Title
				if meta.Artist != "" {
					label = meta.Artist + " - " + meta.Title
				}
				rows = append(rows, []string{
					shortKey(meta.Key),
					label,
					meta.Platform,
					formatBytes(meta.SizeBytes),
					meta.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Track", "Platform", "Size", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Entries", strconv.Itoa(stats.Entries)},
				{"Total size", formatBytes(stats.TotalBytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Counter", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one cached entry, or all entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				key, err := resolveCacheKey(store, args[0])
				if err != nil {
					return err
				}
				if err := store.Remove(key); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %s\n", shortKey(key))
				return nil
			}

			entries, err := store.List()
			if err != nil {
				return err
			}
			for _, meta := range entries {
				if err := store.Remove(meta.Key); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Removed %d entries\n", len(entries))
			return nil
		},
	}
}

// resolveCacheKey accepts a full key or an unambiguous prefix.
func resolveCacheKey(store *cache.FSStore, arg string) (string, error) {
	entries, err := store.List()
	if err != nil {
		return "", err
	}
	var match string
	for _, meta := range entries {
		if meta.Key == arg {
			return meta.Key, nil
		}
		if len(arg) >= 8 && len(meta.Key) >= len(arg) && meta.Key[:len(arg)] == arg {
			if match != "" {
				return "", fmt.Errorf("key prefix %q is ambiguous", arg)
			}
			match = meta.Key
		}
	}
	if match == "" {
		return "", fmt.Errorf("no cache entry matches %q", arg)
	}
	return match, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
