package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/notifications"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance operations",
	}

	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var clearHistory bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := metastore.Open(cfg, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open cache store: %w", err)
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if clearHistory {
				if err := store.ClearHistory(cmd.Context()); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
			}

			notifier := notifications.NewService(cfg)
			_ = notifier.NotifyCacheCleared(cmd.Context(), removed)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d cached entries\n", removed)
			if clearHistory {
				fmt.Fprintln(out, "Playback history cleared")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearHistory, "history", false, "Also clear playback history")
	return cmd
}
