// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sysops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// pollInterval is how often Terminate re-checks a process.
var pollInterval = 100 * time.Millisecond

func (h *Host) OpenHandles(ctx context.Context, prefix string) ([]Handle, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	self := int32(os.Getpid())
	var handles []Handle
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			// Access denied or the process exited mid-scan.
			continue
		}
		for _, f := range files {
			if !hasPrefixFold(f.Path, prefix) {
				continue
			}
			name, _ := p.NameWithContext(ctx)
			handles = append(handles, Handle{PID: p.Pid, Name: name, Path: f.Path})
			break
		}
	}
	return handles, nil
}

func (h *Host) Terminate(ctx context.Context, pid int32, wait time.Duration) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("opening process %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminating process %d: %w", pid, err)
	}

	deadline := time.Now().Add(wait)
	for {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process %d still running after %s", pid, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (h *Host) DiskUsage(ctx context.Context, path string) (Usage, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Usage{}, fmt.Errorf("reading disk usage of %s: %w", path, err)
	}
	h.log.Debug("disk usage",
		zap.String("path", path),
		zap.Uint64("used", u.Used),
		zap.Uint64("free", u.Free))
	return Usage{Total: u.Total, Used: u.Used, Free: u.Free}, nil
}

// hasPrefixFold reports whether s starts with prefix, ignoring case.
// Drive letters and NTFS paths are case-insensitive.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
