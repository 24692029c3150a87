package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eric-livezey/void-bot/internal/cache"
	"github.com/eric-livezey/void-bot/internal/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the audio cache.",
	}
	cmd.AddCommand(newCacheListCmd(configPath), newCachePruneCmd(configPath))
	return cmd
}

// openCache opens the configured cache directory without a fetcher; the
// maintenance commands never download.
func openCache(configPath string) (*cache.Store, *config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	store, err := cache.New(cache.Config{Dir: cfg.Cache.Dir}, nil)
	return store, cfg, err
}

func newCacheListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached artifacts.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openCache(*configPath)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSIZE\tMODIFIED")
			var total int64
			for _, e := range entries {
				total += e.Size
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, formatSize(e.Size), e.ModTime.Format(time.DateTime))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifacts, %s in %s\n", len(entries), formatSize(total), store.Dir())
			return nil
		},
	}
}

func newCachePruneCmd(configPath *string) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete artifacts not modified within --older-than.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openCache(*configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.Cache.MaxAge
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			out := cmd.OutOrStdout()
			if dryRun {
				entries, err := store.List()
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-olderThan)
				n := 0
				for _, e := range entries {
					if e.ModTime.Before(cutoff) {
						fmt.Fprintln(out, "would remove", e.ID)
						n++
					}
				}
				fmt.Fprintf(out, "%d artifacts would be removed\n", n)
				return nil
			}
			removed, err := store.Prune(olderThan, time.Now())
			for _, e := range removed {
				fmt.Fprintln(out, "removed", e.ID)
			}
			fmt.Fprintf(out, "%d artifacts removed\n", len(removed))
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "remove artifacts last modified before this age (default: cache.max_age)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be removed without deleting")
	return cmd
}

// formatSize renders n bytes with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
