// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guard makes a volume safe to take offline: it evicts processes
// holding files open on the volume and issues the low-level dismount.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/fsconvert/internal/retry"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

var errStillBusy = errors.New("open handles remain")

// Guard implements the eviction and unmount protocol.
type Guard struct {
	ops sysops.Ops
	cfg types.GuardConfig
	log *zap.Logger
}

// New returns a Guard. A nil logger discards output.
func New(ops sysops.Ops, cfg types.GuardConfig, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{ops: ops, cfg: cfg, log: log}
}

// EnsureIdle returns nil once no process holds a file open on device. Each
// round scans, terminates offenders and waits RetryDelay before the next
// scan. After IdleAttempts rounds the device is reported busy together with
// the processes seen in the last scan.
func (g *Guard) EnsureIdle(ctx context.Context, device string) error {
	root := types.RootPath(device)
	if !g.ops.Listable(root) {
		return types.Errorf(types.KindDeviceBusy, device, "device %s is not accessible", device)
	}

	var offenders []sysops.Handle
	err := retry.Do(ctx, g.cfg.IdleAttempts, g.cfg.RetryDelay, func(attempt int) error {
		handles, err := g.ops.OpenHandles(ctx, root)
		if err != nil {
			g.log.Warn("handle scan failed",
				zap.String("device", device),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return fmt.Errorf("scanning open handles: %w", err)
		}
		if len(handles) == 0 {
			return nil
		}
		offenders = handles
		g.log.Info("device in use",
			zap.String("device", device),
			zap.Int("attempt", attempt),
			zap.Int("processes", len(handles)))
		g.evict(ctx, device, handles)
		return errStillBusy
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.Cancelled(device, ctxErr)
	}
	if len(offenders) == 0 {
		return types.NewError(types.KindDeviceBusy, device,
			fmt.Sprintf("could not confirm %s is idle", device), err)
	}
	return types.NewError(types.KindDeviceBusy, device,
		fmt.Sprintf("device %s is in use by %s", device, describe(offenders)), err)
}

// ForceUnmount evicts whatever still holds the volume, waits UnmountDelay
// and dismounts it. Eviction failures are ignored; a dismount failure is
// returned as UnmountFailed and is not retried.
func (g *Guard) ForceUnmount(ctx context.Context, device string) error {
	handles, err := g.ops.OpenHandles(ctx, types.RootPath(device))
	if err != nil {
		g.log.Warn("handle scan before unmount failed", zap.String("device", device), zap.Error(err))
	} else {
		g.evict(ctx, device, handles)
	}

	if err := retry.Sleep(ctx, g.cfg.UnmountDelay); err != nil {
		return types.Cancelled(device, err)
	}

	if err := g.ops.Dismount(device); err != nil {
		g.log.Error("dismount failed", zap.String("device", device), zap.Error(err))
		return types.NewError(types.KindUnmountFailed, device,
			fmt.Sprintf("could not dismount %s", device), err)
	}
	g.log.Info("device dismounted", zap.String("device", device))
	return nil
}

// evict terminates every distinct process in handles. Failures are logged;
// the following scan decides whether the device is free.
func (g *Guard) evict(ctx context.Context, device string, handles []sysops.Handle) {
	seen := make(map[int32]bool, len(handles))
	for _, h := range handles {
		if seen[h.PID] {
			continue
		}
		seen[h.PID] = true
		if err := g.ops.Terminate(ctx, h.PID, g.cfg.TerminateWait); err != nil {
			g.log.Warn("terminate failed",
				zap.String("device", device),
				zap.Int32("pid", h.PID),
				zap.String("process", h.Name),
				zap.Error(err))
			continue
		}
		g.log.Debug("process terminated",
			zap.String("device", device),
			zap.Int32("pid", h.PID),
			zap.String("process", h.Name))
	}
}

// describe renders offenders as "name (pid), ..." sorted by pid.
func describe(handles []sysops.Handle) string {
	byPID := map[int32]string{}
	for _, h := range handles {
		byPID[h.PID] = h.Name
	}
	pids := make([]int32, 0, len(byPID))
	for pid := range byPID {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	parts := make([]string, len(pids))
	for i, pid := range pids {
		name := byPID[pid]
		if name == "" {
			name = "unknown"
		}
		parts[i] = fmt.Sprintf("%s (%d)", name, pid)
	}
	return strings.Join(parts, ", ")
}
