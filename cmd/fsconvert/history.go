// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fsconvert/internal/journal"
	"github.com/pdiddy/fsconvert/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past conversion attempts",
	Long: `History lists recorded conversions, newest first, with the error kind and
message of each failure. Use --export to write the selection as YAML and
--prune to drop old entries.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := journal.NewStore(appCfg.Journal)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if days, _ := cmd.Flags().GetInt("prune"); days > 0 {
		n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "removed %d entries older than %d days\n", n, days)
	}

	device, _ := cmd.Flags().GetString("device")
	if device != "" {
		if id, err := types.NormalizeIdentifier(device); err == nil {
			device = id
		}
	}
	limit, _ := cmd.Flags().GetInt("limit")
	opts := journal.ListOptions{Device: device, Limit: limit}

	if export, _ := cmd.Flags().GetBool("export"); export {
		return store.ExportYAML(ctx, os.Stdout, opts)
	}

	entries, err := store.List(ctx, opts)
	if err != nil {
		return err
	}
	formatHistory(entries)
	return nil
}

func formatHistory(entries []types.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Println("No conversions recorded.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-19s  %-6s  %-13s  %-24s  %-9s  %s\n",
		"Started", "Device", "Change", "Plan", "Status", "Detail")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, e := range entries {
		change := fmt.Sprintf("%s>%s", orDash(string(e.Source)), e.Target)
		fmt.Fprintf(os.Stdout, "%-19s  %-6s  %-13s  %-24s  %-9s  %s\n",
			e.Started.Local().Format("2006-01-02 15:04:05"),
			e.Device, change, orDash(string(e.Plan)), e.Status, e.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	historyCmd.Flags().String("device", "", "only show conversions of this device")
	historyCmd.Flags().Int("limit", 50, "maximum number of entries")
	historyCmd.Flags().Bool("export", false, "write entries to stdout as YAML")
	historyCmd.Flags().Int("prune", 0, "delete entries older than this many days first")
	rootCmd.AddCommand(historyCmd)
}
