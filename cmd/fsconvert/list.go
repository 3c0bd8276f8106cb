// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fsconvert/internal/devices"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List removable drives",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	lister := devices.New(sysops.NewHost(logger.Named("sysops")), logger.Named("devices"))
	devs, err := lister.List(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatDevices(devs, jsonOutput)
}

func formatDevices(devs []types.Device, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devs)
	}

	if len(devs) == 0 {
		fmt.Println("No removable drives found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-8s  %-16s  %10s  %10s  %10s\n",
		"Device", "FS", "Label", "Size", "Used", "Free")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 72))
	for _, d := range devs {
		fmt.Fprintf(os.Stdout, "%-10s  %-8s  %-16s  %10s  %10s  %10s\n",
			d.Identifier, d.Filesystem, d.VolumeLabel,
			humanize.Bytes(d.TotalBytes), humanize.Bytes(d.UsedBytes), humanize.Bytes(d.FreeBytes))
	}
	return nil
}

func init() {
	listCmd.Flags().Bool("json", false, "output devices as JSON")
	rootCmd.AddCommand(listCmd)
}
