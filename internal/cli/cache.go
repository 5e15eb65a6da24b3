package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Reload, inspect and clear the queue cache",
		Long: `Administer the queue cache.

The cache is per process: these commands load it from the database, act on
it and report the result, which makes them useful to check what a running
service would hold after a reload.`,
	}
	cmd.AddCommand(newCacheReloadCommand(opts), newCacheStatsCommand(opts), newCacheClearCommand(opts))
	return cmd
}

func newCacheReloadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the cache from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				res, err := a.svc.ReloadCache(cmd.Context())
				if err != nil {
					return f.Fail("reload cache", err)
				}
				data := map[string]any{
					"skipped":     res.Skipped,
					"items":       res.Items,
					"day":         res.Day,
					"duration_ms": res.Duration.Milliseconds(),
				}
				return f.Success(data, fmt.Sprintf("✓ cache reloaded: %d items for %s in %s", res.Items, res.Day, res.Duration))
			})
		},
	}
}

func newCacheStatsCommand(opts *RootOptions) *cobra.Command {
	typ := &cacheTypeValue{t: model.CacheAll}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Example: `  qms cache stats
  qms cache stats --type tickets --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				st, err := a.svc.CacheStatistics(typ.t)
				if err != nil {
					return f.Fail("cache statistics", err)
				}
				return f.Success(st, formatCacheStats(st))
			})
		},
	}
	cmd.Flags().Var(typ, "type", "cache type (all|tickets|queues|screens|parameters|counters or 0-5)")
	return cmd
}

func newCacheClearCommand(opts *RootOptions) *cobra.Command {
	typ := &cacheTypeValue{t: model.CacheAll}
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear one cache structure (or all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				if err := a.svc.ClearCacheByType(typ.t); err != nil {
					return f.Fail("clear cache", err)
				}
				st, err := a.svc.CacheStatistics(model.CacheAll)
				if err != nil {
					return f.Fail("cache statistics", err)
				}
				return f.Success(st, fmt.Sprintf("✓ cleared %s\n%s", typ.t, formatCacheStats(st)))
			})
		},
	}
	cmd.Flags().Var(typ, "type", "cache type (all|tickets|queues|screens|parameters|counters or 0-5)")
	return cmd
}

func formatCacheStats(st cache.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cache %s: day %s, loaded=%t, reloads=%d, items=%d\n", st.Type, st.Day, st.Loaded, st.Reloads, st.ItemCount)
	for _, name := range slices.Sorted(maps.Keys(st.Counts)) {
		fmt.Fprintf(&b, "  %-10s %d\n", name, st.Counts[name])
	}
	for _, q := range slices.Sorted(maps.Keys(st.PerQueue)) {
		fmt.Fprintf(&b, "  queue %-4d %d tickets\n", q, st.PerQueue[q])
	}
	return strings.TrimRight(b.String(), "\n")
}
