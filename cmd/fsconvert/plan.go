// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fsconvert/internal/devices"
	"github.com/pdiddy/fsconvert/internal/planner"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan <device> <filesystem>",
	Short: "Show how a drive would be converted without changing it",
	Long: `Plan reads the drive's current filesystem and prints the path a conversion
would take: none, in-place or backup-reformat-restore. Processes holding
the drive open are terminated, as they would be for a conversion.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	target, err := types.ParseFilesystem(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	host := sysops.NewHost(logger.Named("sysops"))
	p := planner.New(host, appCfg, logger.Named("planner"))
	d, err := p.Plan(ctx, args[0], target)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Printf("device:  %s\n", d.Device)
	fmt.Printf("current: %s\n", d.Source)
	fmt.Printf("target:  %s\n", d.Target)
	fmt.Printf("plan:    %s\n", d.Plan)
	if dev, err := devices.New(host, logger.Named("devices")).Lookup(ctx, d.Device); err == nil {
		fmt.Printf("label:   %s\n", dev.VolumeLabel)
		fmt.Printf("used:    %s of %s\n", humanize.Bytes(dev.UsedBytes), humanize.Bytes(dev.TotalBytes))
	}
	if d.Plan.Destructive() {
		fmt.Println("\nThe drive will be backed up to the system drive, reformatted and restored.")
	}
	return nil
}

func init() {
	planCmd.Flags().Bool("json", false, "output the decision as JSON")
	rootCmd.AddCommand(planCmd)
}
