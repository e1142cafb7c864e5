package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/providers"
)

const recentHistoryLimit = 10

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var showHistory bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache contents and playback history",
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

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read cache stats: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderSectionHeader("Cache entries", colorize))
			fmt.Fprintln(out, renderStatsTable(stats))

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Providers", colorize))
			fmt.Fprintln(out, statusIndent+providerChainLabel(cfg.Providers.Order))

			if !showHistory {
				return nil
			}

			songs, err := store.RecentSongs(cmd.Context(), recentHistoryLimit)
			if err != nil {
				return fmt.Errorf("read song history: %w", err)
			}
			albums, err := store.RecentAlbums(cmd.Context(), recentHistoryLimit)
			if err != nil {
				return fmt.Errorf("read album history: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Recent songs", colorize))
			printHistoryList(out, songs)
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Recent albums", colorize))
			printHistoryList(out, albums)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showHistory, "history", false, "Include recent playback history")
	return cmd
}

func renderStatsTable(stats []metastore.KindStats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Kind", "Entries", "Bytes"})

	var totalEntries, totalBytes int64
	for _, entry := range stats {
		tw.AppendRow(table.Row{entry.Kind.String(), entry.Entries, humanBytes(entry.Bytes)})
		totalEntries += entry.Entries
		totalBytes += entry.Bytes
	}
	tw.AppendFooter(table.Row{"total", totalEntries, humanBytes(totalBytes)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}

// providerChainLabel renders the fallback order as readable provider names.
func providerChainLabel(order []string) string {
	if len(order) == 0 {
		return "(none configured)"
	}
	names := make([]string, len(order))
	for i, name := range order {
		names[i] = providers.DisplayName(name)
	}
	return strings.Join(names, " -> ")
}

func printHistoryList(out io.Writer, values []string) {
	if len(values) == 0 {
		fmt.Fprintln(out, statusIndent+"(none)")
		return
	}
	for _, value := range values {
		fmt.Fprintln(out, statusIndent+value)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for next := n / unit; next >= unit; next /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
