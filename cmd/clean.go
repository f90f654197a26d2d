package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"deckcast/internal/storage"
	"deckcast/pkg/config"
)

var (
	cleanOlderThan time.Duration
	cleanRemote    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old generated decks",
	Long:  `Remove run directories older than the retention window, and optionally the published copies in GCS.`,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().DurationVar(&cleanOlderThan, "older-than", 0, "Age after which runs are deleted (defaults to output.retention)")
	cleanCmd.Flags().BoolVar(&cleanRemote, "remote", false, "Also delete published objects in the GCS bucket")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	olderThan := cleanOlderThan
	if olderThan <= 0 {
		olderThan = cfg.Output.Retention
	}

	cleaners := []storage.Cleaner{
		storage.NewLocalStorage(cfg.Output.Dir, cfg.Output.URLPath, cfg.Server.BaseURL),
	}
	if cleanRemote {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return err
		}
		defer func() { _ = gcs.Close() }()
		cleaners = append(cleaners, gcs)
	}

	total := 0
	for _, c := range cleaners {
		n, err := c.Clean(ctx, olderThan)
		total += n
		if err != nil {
			return err
		}
	}

	fmt.Printf("Removed %d run(s) older than %s\n", total, olderThan)
	return nil
}

// cleanPeriodically applies the retention window to the output directory
// until ctx is cancelled.
func cleanPeriodically(ctx context.Context, c storage.Cleaner, retention time.Duration) {
	interval := max(retention/4, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Clean(ctx, retention)
			if err != nil {
				slog.Warn("Cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Removed expired runs", "count", n)
			}
		}
	}
}
