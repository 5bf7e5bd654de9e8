package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/config"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's recorded snapshots, oldest first",
		RunE:  runHistory,
	}

	addStoreFlags(cmd)
	cmd.Flags().String("user", "", "History owner (required)")
	cmd.Flags().Bool("clear", false, "Delete the history after printing it")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		RunE:  runPrune,
	}

	addStoreFlags(cmd)
	cmd.Flags().Int("days", config.DefaultHistoryRetentionDays, "Retention window in days")
	return cmd
}

// addStoreFlags registers backend flags. Unset flags fall back to the
// service configuration (env and CONFIG_FILE).
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "", "History backend: sqlite|redis|memory")
	f.String("data-dir", "", "SQLite data directory")
	f.String("redis-addr", "", "Redis address for the redis backend")
	f.Duration("timeout", 10*time.Second, "Store operation timeout")
}

func openStore(cmd *cobra.Command) (storage.HistoryStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	f := cmd.Flags()
	if f.Changed("backend") {
		cfg.StoreBackend, _ = f.GetString("backend")
	}
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("redis-addr") {
		cfg.RedisAddr, _ = f.GetString("redis-addr")
	}

	store, redisClient, err := storage.Open(storage.Options{
		Backend:       cfg.StoreBackend,
		DataDir:       cfg.DataDir,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Retention:     cfg.Retention(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	closeFn := func() {
		errors.SafeClose(store, "history store")
		if redisClient != nil {
			errors.SafeClose(redisClient, "redis client")
		}
	}
	return store, closeFn, nil
}

func storeContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	user, _ := cmd.Flags().GetString("user")
	clearAfter, _ := cmd.Flags().GetBool("clear")

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := storeContext(cmd)
	defer cancel()

	snapshots, err := store.List(ctx, user)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if snapshots == nil {
		snapshots = []storage.Snapshot{}
	}
	if err := writeJSON(cmd.OutOrStdout(), snapshots); err != nil {
		return err
	}

	if clearAfter {
		deleted, err := store.Clear(ctx, user)
		if err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %d snapshots for %s\n", deleted, user)
	}
	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := storeContext(cmd)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d snapshots older than %s\n", removed, cutoff.UTC().Format(time.RFC3339))
	return nil
}
