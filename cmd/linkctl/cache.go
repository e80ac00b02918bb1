package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/linkcache"
)

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the cache tiers",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entries, hits and evictions per tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeEngine, err := openEngine(context.Background())
			if err != nil {
				return err
			}
			defer closeEngine()

			stats := engine.Caches.Stats()
			ui := newUI()
			if outputJSON {
				return ui.JSON(stats)
			}

			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				oldest := "-"
				if !s.Oldest.IsZero() {
					oldest = s.Oldest.Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					s.Name,
					fmt.Sprintf("%d / %d", s.Entries, s.Capacity),
					FormatDuration(s.TTL),
					strconv.FormatUint(s.Hits, 10),
					strconv.FormatUint(s.Misses, 10),
					strconv.FormatUint(s.Evictions, 10),
					strconv.FormatUint(s.Expired, 10),
					oldest,
				})
			}
			ui.Section("Cache tiers")
			ui.KeyValue("Storage", cfg.Storage.Driver)
			ui.Table([]string{"Tier", "Entries", "TTL", "Hits", "Misses", "Evicted", "Expired", "Oldest"}, rows)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [action_links|search|all]",
		Short:     "Empty a cache tier and its persisted snapshot",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{linkcache.TierActionLinks, linkcache.TierSearch, "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := "all"
			if len(args) == 1 {
				tier = args[0]
			}

			ctx := context.Background()
			engine, closeEngine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeEngine()

			ui := newUI()
			if err := engine.Caches.Clear(ctx, tier); err != nil {
				if errors.Is(err, linkcache.ErrUnknownTier) {
					return fmt.Errorf("%w: %s", err, tier)
				}
				ui.Warning("Cleared in memory but the snapshot was not persisted: %v", err)
			}

			if outputJSON {
				return ui.JSON(map[string]string{"cleared": tier})
			}
			ui.Success("Cleared %s", tier)
			return nil
		},
	}
}
