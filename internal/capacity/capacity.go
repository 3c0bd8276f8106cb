// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package capacity checks that the system drive can hold a full backup of
// a device before anything is copied.
package capacity

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

// ShortfallError reports how much staging space a backup needs and how
// much the system drive has.
type ShortfallError struct {
	Needed    uint64
	Available uint64
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("backup needs %s on the system drive but only %s is free",
		humanize.IBytes(e.Needed), humanize.IBytes(e.Available))
}

// Checker compares a device's used space with system-drive free space.
type Checker struct {
	ops sysops.Ops
	cfg types.CapacityConfig
	log *zap.Logger
}

// New returns a Checker. A zero SafetyFactor means 1.2.
func New(ops sysops.Ops, cfg types.CapacityConfig, log *zap.Logger) *Checker {
	if cfg.SafetyFactor <= 0 {
		cfg.SafetyFactor = types.DefaultConfig().Capacity.SafetyFactor
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{ops: ops, cfg: cfg, log: log}
}

// Required returns used scaled by factor, rounded up.
func Required(used uint64, factor float64) uint64 {
	return uint64(math.Ceil(float64(used) * factor))
}

// Check returns nil when the system drive's free space covers the device's
// used space times the safety factor. A shortfall is InsufficientSpace
// wrapping *ShortfallError; a failed usage query is DetectionFailed.
func (c *Checker) Check(ctx context.Context, device string) error {
	src, err := c.ops.DiskUsage(ctx, types.RootPath(device))
	if err != nil {
		return types.NewError(types.KindDetectionFailed, device,
			fmt.Sprintf("could not read used space on %s", device), err)
	}
	sys := c.ops.SystemDrive()
	dst, err := c.ops.DiskUsage(ctx, sys)
	if err != nil {
		return types.NewError(types.KindDetectionFailed, device,
			fmt.Sprintf("could not read free space on %s", sys), err)
	}

	needed := Required(src.Used, c.cfg.SafetyFactor)
	c.log.Info("capacity check",
		zap.String("device", device),
		zap.Uint64("used", src.Used),
		zap.Uint64("needed", needed),
		zap.Uint64("available", dst.Free))

	if dst.Free < needed {
		short := &ShortfallError{Needed: needed, Available: dst.Free}
		return types.NewError(types.KindInsufficientSpace, device, short.Error(), short)
	}
	return nil
}
