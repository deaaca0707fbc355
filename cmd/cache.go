package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the semantic query cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached query",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	stats, err := repo.GetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Cached queries:      %d\n", stats.CachedQueries)
	fmt.Fprintf(out, "Schema fingerprints: %d\n", stats.Fingerprints)
	fmt.Fprintf(out, "Hints:               %d\n", stats.Hints)
	fmt.Fprintf(out, "Store size:          %s\n", formatBytes(stats.DatabaseSize))

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")

	return nil
}

func formatBytes(n int64) string {
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
