// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/fsconvert/internal/journal"
	"github.com/pdiddy/fsconvert/internal/planner"
	"github.com/pdiddy/fsconvert/internal/session"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <device> <filesystem>",
	Short: "Convert a removable drive to another filesystem",
	Long: `Convert changes the filesystem of a removable drive (e.g. "E:") to one of
NTFS, FAT32, exFAT or FAT. Processes holding files open on the drive are
terminated first.

When no in-place path exists the drive's data is copied to the system
drive, the drive is reformatted and the data is copied back. Interrupting
with Ctrl+C stops the current step and removes the backup; a reformat that
already happened is not undone.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	req := types.ConversionRequest{Device: args[0], Target: types.Filesystem(args[1])}
	if err := req.Validate(); err != nil {
		return err
	}
	if !sysops.IsElevated() {
		fmt.Fprintln(os.Stderr, "warning: not running with administrator rights; unmount and format will likely fail")
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		ok, err := confirm(cmd.InOrStdin(), os.Stderr,
			fmt.Sprintf("Convert %s to %s? Files in use on the drive will be closed and the drive may be reformatted.", req.Device, req.Target))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "aborted")
			return nil
		}
	}

	host := sysops.NewHost(logger.Named("sysops"))
	p := planner.New(host, appCfg, logger.Named("planner"))

	var recorder session.Recorder
	if appCfg.Journal.Enabled {
		store, err := journal.NewStore(appCfg.Journal)
		if err != nil {
			logger.Warn("history disabled", zap.Error(err))
		} else {
			defer store.Close()
			recorder = store
		}
	}
	sess := session.New(p, recorder, logger.Named("session"))

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(string(types.StepValidate)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	results, err := sess.Start(req, session.Callbacks{
		OnProgress: func(p types.Progress) {
			bar.Describe(string(p.Step))
			_ = bar.Set(p.Percent)
		},
	})
	if err != nil {
		return err
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			fmt.Fprintln(os.Stderr, "\ncancelling...")
			sess.Cancel()
		}
	}()

	res := <-results
	_ = bar.Finish()
	if res.Err != nil {
		return res.Err
	}

	switch res.Decision.Plan {
	case types.PlanNoOp:
		fmt.Printf("%s is already %s; nothing to do\n", req.Device, res.Decision.Source)
	default:
		fmt.Printf("converted %s from %s to %s (%s) in %s\n",
			req.Device, res.Decision.Source, req.Target, res.Decision.Plan,
			res.Finished.Sub(res.Started).Round(time.Second))
	}
	return nil
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func init() {
	convertCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(convertCmd)
}
