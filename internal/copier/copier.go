// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package copier mirrors a directory tree with the host's robust copy tool
// and judges each run by its exit code.
package copier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/fsconvert/internal/retry"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

// Flags are passed to every mirror run: recurse including empty dirs,
// restartable mode, copy data/attributes/timestamps, three in-tool retries
// five seconds apart, and no per-file or header output.
var Flags = []string{
	"/E", "/Z",
	"/COPY:DAT", "/DCOPY:T",
	"/R:3", "/W:5",
	"/NP", "/NFL", "/NDL", "/NJH", "/NJS",
}

// failureThreshold is the lowest exit code the copy tool uses for a failed
// run. Codes below it mean files were copied, skipped or already in sync.
const failureThreshold = 8

// Succeeded reports whether a copy exit code means success.
func Succeeded(code int) bool {
	return code >= 0 && code < failureThreshold
}

// Copier runs bounded, retried mirror copies.
type Copier struct {
	ops sysops.Ops
	cfg types.CopyConfig
	log *zap.Logger
}

// New returns a Copier. Zero config fields take their defaults.
func New(ops sysops.Ops, cfg types.CopyConfig, log *zap.Logger) *Copier {
	def := types.DefaultConfig().Copy
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Copier{ops: ops, cfg: cfg, log: log}
}

// Backup mirrors the root of device into the staging directory.
func (c *Copier) Backup(ctx context.Context, device, staging string) error {
	return c.copyTree(ctx, device, types.RootPath(device), staging)
}

// Restore mirrors the staging directory back onto the root of device.
func (c *Copier) Restore(ctx context.Context, staging, device string) error {
	return c.copyTree(ctx, device, staging, types.RootPath(device))
}

// CopyTree mirrors src into dst. Each run is bounded by AttemptTimeout; a
// run that times out is killed and counts as a failed attempt. Cancelling
// ctx stops immediately with Cancelled. When every attempt fails the
// result is CopyFailed carrying the last run's output.
func (c *Copier) CopyTree(ctx context.Context, src, dst string) error {
	return c.copyTree(ctx, "", src, dst)
}

func (c *Copier) copyTree(ctx context.Context, device, src, dst string) error {
	args := append([]string{src, dst}, Flags...)
	var lastOutput string

	err := retry.Do(ctx, c.cfg.MaxAttempts, c.cfg.RetryDelay, func(attempt int) error {
		start := time.Now()
		actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()

		res, err := c.ops.Run(actx, sysops.Command{Name: c.cfg.Binary, Args: args})
		if err != nil {
			if ctx.Err() != nil {
				return retry.Stop(types.Cancelled(device, ctx.Err()))
			}
			if errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("copy attempt timed out",
					zap.String("device", device),
					zap.Int("attempt", attempt),
					zap.Duration("timeout", c.cfg.AttemptTimeout))
				return fmt.Errorf("attempt %d timed out after %s", attempt, c.cfg.AttemptTimeout)
			}
			c.log.Warn("copy attempt failed to run",
				zap.String("device", device),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}

		lastOutput = res.Output
		if Succeeded(res.ExitCode) {
			c.log.Info("copy complete",
				zap.String("device", device),
				zap.String("src", src),
				zap.String("dst", dst),
				zap.Int("attempt", attempt),
				zap.Int("exit_code", res.ExitCode),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		c.log.Warn("copy attempt failed",
			zap.String("device", device),
			zap.Int("attempt", attempt),
			zap.Int("exit_code", res.ExitCode))
		return fmt.Errorf("%s exited with code %d", c.cfg.Binary, res.ExitCode)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return types.Cancelled(device, ctx.Err())
	}

	msg := fmt.Sprintf("copying %s to %s failed after %d attempts", src, dst, c.cfg.MaxAttempts)
	if lastOutput != "" {
		msg += ": " + lastOutput
	}
	return types.NewError(types.KindCopyFailed, device, msg, err)
}
