// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package format drives the host's format and convert tools and waits for
// a freshly written volume to come back.
package format

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/fsconvert/internal/retry"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

const (
	formatTool  = "format"
	convertTool = "convert"

	// confirm answers the "proceed with format (Y/N)?" prompt.
	confirm = "Y\r\n"
)

var errNotReady = errors.New("volume not listable")

// Executor runs format and convert against a dismounted or idle volume.
type Executor struct {
	ops sysops.Ops
	cfg types.FormatConfig
	log *zap.Logger
}

// New returns an Executor. Zero timeouts and attempt counts take their
// defaults.
func New(ops sysops.Ops, cfg types.FormatConfig, log *zap.Logger) *Executor {
	def := types.DefaultConfig().Format
	if cfg.FormatTimeout <= 0 {
		cfg.FormatTimeout = def.FormatTimeout
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = def.ConvertTimeout
	}
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = def.ReadyAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{ops: ops, cfg: cfg, log: log}
}

// VolumeLabel returns the label written on reformat ("E:" -> "USB-E").
func (e *Executor) VolumeLabel(device string) string {
	return e.cfg.LabelPrefix + types.Letter(device)
}

// Reformat quick-formats device as target, answering the confirmation
// prompt. Anything but exit 0 within FormatTimeout is FormatFailed.
func (e *Executor) Reformat(ctx context.Context, device string, target types.Filesystem) error {
	cmd := sysops.Command{
		Name: formatTool,
		Args: []string{
			device,
			"/FS:" + string(target),
			"/Q",
			"/V:" + e.VolumeLabel(device),
		},
		Stdin: confirm,
	}

	e.log.Info("formatting", zap.String("device", device), zap.String("target", string(target)))
	actx, cancel := context.WithTimeout(ctx, e.cfg.FormatTimeout)
	defer cancel()

	res, err := e.ops.Run(actx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return types.Cancelled(device, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewError(types.KindFormatFailed, device,
				fmt.Sprintf("format of %s timed out after %s", device, e.cfg.FormatTimeout), err)
		}
		return types.NewError(types.KindFormatFailed, device,
			fmt.Sprintf("could not run format on %s", device), err)
	}
	if res.ExitCode != 0 {
		e.log.Error("format failed",
			zap.String("device", device),
			zap.Int("exit_code", res.ExitCode),
			zap.String("output", res.Output))
		return types.NewError(types.KindFormatFailed, device,
			fmt.Sprintf("format of %s exited with code %d: %s", device, res.ExitCode, res.Output), nil)
	}
	e.log.Info("format complete", zap.String("device", device))
	return nil
}

// ConvertInPlace rewrites a FAT-family volume as NTFS without erasing it,
// forcing a dismount first. On success the drive letter is re-registered
// and the call waits SettleDelay for the volume to settle.
func (e *Executor) ConvertInPlace(ctx context.Context, device string, target types.Filesystem) error {
	if target != types.NTFS {
		return types.Errorf(types.KindUnsupportedFilesystem, device,
			"in-place conversion only supports NTFS, not %s", target)
	}
	cmd := sysops.Command{
		Name: convertTool,
		Args: []string{device, "/FS:" + string(types.NTFS), "/X"},
	}

	e.log.Info("converting in place", zap.String("device", device))
	actx, cancel := context.WithTimeout(ctx, e.cfg.ConvertTimeout)
	defer cancel()

	res, err := e.ops.Run(actx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return types.Cancelled(device, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewError(types.KindTimeout, device,
				fmt.Sprintf("convert of %s timed out after %s", device, e.cfg.ConvertTimeout), err)
		}
		return types.NewError(types.KindFormatFailed, device,
			fmt.Sprintf("could not run convert on %s", device), err)
	}
	if res.ExitCode != 0 {
		e.log.Error("convert failed",
			zap.String("device", device),
			zap.Int("exit_code", res.ExitCode),
			zap.String("output", res.Output))
		return types.NewError(types.KindFormatFailed, device,
			fmt.Sprintf("convert of %s exited with code %d: %s", device, res.ExitCode, res.Output), nil)
	}

	if err := e.ops.RegisterMountPoint(device); err != nil {
		e.log.Warn("re-registering mount point failed", zap.String("device", device), zap.Error(err))
	}
	if err := retry.Sleep(ctx, e.cfg.SettleDelay); err != nil {
		return types.Cancelled(device, err)
	}
	e.log.Info("convert complete", zap.String("device", device))
	return nil
}

// WaitUntilReady polls the device root until it can be listed, up to
// ReadyAttempts times ReadyInterval apart.
func (e *Executor) WaitUntilReady(ctx context.Context, device string) error {
	root := types.RootPath(device)
	err := retry.Do(ctx, e.cfg.ReadyAttempts, e.cfg.ReadyInterval, func(attempt int) error {
		if e.ops.Listable(root) {
			e.log.Debug("device ready", zap.String("device", device), zap.Int("attempt", attempt))
			return nil
		}
		return errNotReady
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return types.Cancelled(device, ctx.Err())
	}
	return types.NewError(types.KindDeviceNotReadyAfterFormat, device,
		fmt.Sprintf("%s did not come back after %d checks", device, e.cfg.ReadyAttempts), err)
}
