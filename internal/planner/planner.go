// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner chooses how a volume is converted and drives the steps of
// the chosen path. The cheapest path that reaches the target is always
// taken: nothing when the filesystems are equivalent, an in-place convert
// when one exists, and a full backup, reformat and restore otherwise.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/fsconvert/internal/capacity"
	"github.com/pdiddy/fsconvert/internal/copier"
	"github.com/pdiddy/fsconvert/internal/format"
	"github.com/pdiddy/fsconvert/internal/guard"
	"github.com/pdiddy/fsconvert/internal/staging"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

// ProgressFunc receives a notification at the start of each step.
type ProgressFunc func(types.Progress)

// Planner owns one instance of every pipeline component.
type Planner struct {
	ops      sysops.Ops
	guard    *guard.Guard
	capacity *capacity.Checker
	staging  *staging.Manager
	copier   *copier.Copier
	format   *format.Executor
	log      *zap.Logger
}

// New wires the pipeline components around ops.
func New(ops sysops.Ops, cfg types.Config, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{
		ops:      ops,
		guard:    guard.New(ops, cfg.Guard, log.Named("guard")),
		capacity: capacity.New(ops, cfg.Capacity, log.Named("capacity")),
		staging:  staging.New(cfg.Staging, ops.SystemDrive(), log.Named("staging")),
		copier:   copier.New(ops, cfg.Copy, log.Named("copier")),
		format:   format.New(ops, cfg.Format, log.Named("format")),
		log:      log,
	}
}

// Staging exposes the staging manager so callers can inspect the active
// area.
func (p *Planner) Staging() *staging.Manager { return p.staging }

// Decide maps a current and target filesystem onto a conversion path.
// Labels compare case-insensitively and FAT and FAT32 are equivalent.
func Decide(current, target types.Filesystem) types.Plan {
	switch {
	case current.Upper() == target.Upper():
		return types.PlanNoOp
	case current.IsFATFamily() && target.IsFATFamily():
		return types.PlanNoOp
	case current.IsFATFamily() && target.Upper() == types.NTFS.Upper():
		return types.PlanInPlace
	}
	return types.PlanBackupRestore
}

// Plan normalizes device, makes sure it is idle and reads its current
// filesystem. The only side effect is the eviction of processes that hold
// the device open.
func (p *Planner) Plan(ctx context.Context, device string, target types.Filesystem) (types.Decision, error) {
	id, err := types.NormalizeIdentifier(device)
	if err != nil {
		return types.Decision{}, err
	}
	d := types.Decision{Device: id, Target: target}

	if err := p.guard.EnsureIdle(ctx, id); err != nil {
		return d, err
	}
	source, err := p.detect(ctx, id)
	if err != nil {
		return d, err
	}
	d.Source = source
	d.Plan = Decide(source, target)

	p.log.Info("plan decided",
		zap.String("device", id),
		zap.String("source", string(source)),
		zap.String("target", string(target)),
		zap.String("plan", string(d.Plan)))
	return d, nil
}

// detect reads the filesystem label of device, canonicalizing the
// supported ones and passing others (e.g. ReFS) through uppercased.
func (p *Planner) detect(ctx context.Context, device string) (types.Filesystem, error) {
	info, err := p.ops.VolumeInfo(ctx, device)
	if err != nil {
		return "", types.NewError(types.KindDetectionFailed, device,
			fmt.Sprintf("could not read the filesystem of %s", device), err)
	}
	label := strings.TrimSpace(info.Filesystem)
	if label == "" {
		return "", types.Errorf(types.KindDetectionFailed, device, "filesystem of %s is unknown", device)
	}
	if fs, err := types.ParseFilesystem(label); err == nil {
		return fs, nil
	}
	return types.Filesystem(strings.ToUpper(label)), nil
}

// Execute validates req, plans it and runs the chosen path. The returned
// Decision is filled as far as planning got. Every error is classified;
// a panic in any step is recovered as UnexpectedFailure after the staging
// area has been released.
func (p *Planner) Execute(ctx context.Context, req types.ConversionRequest, progress ProgressFunc) (d types.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("conversion panicked", zap.String("device", req.Device), zap.Any("panic", r))
			err = types.Errorf(types.KindUnexpectedFailure, req.Device, "unexpected failure: %v", r)
		}
	}()

	report := func(s types.Step) {
		if progress != nil {
			progress(types.ProgressAt(s))
		}
	}

	report(types.StepValidate)
	if err := req.Validate(); err != nil {
		return d, err
	}
	if err := checkpoint(ctx, req.Device); err != nil {
		return types.Decision{Device: req.Device, Target: req.Target}, err
	}

	report(types.StepPlan)
	d, err = p.Plan(ctx, req.Device, req.Target)
	if err != nil {
		return d, err
	}

	switch d.Plan {
	case types.PlanNoOp:
		p.log.Info("already in target format", zap.String("device", d.Device))
	case types.PlanInPlace:
		err = p.inPlace(ctx, d, report)
	default:
		err = p.backupRestore(ctx, d, report)
	}
	if err != nil {
		p.log.Error("conversion failed",
			zap.String("device", d.Device),
			zap.String("plan", string(d.Plan)),
			zap.String("kind", string(types.KindOf(err))),
			zap.Error(err))
		return d, err
	}

	report(types.StepDone)
	p.log.Info("conversion succeeded", zap.String("device", d.Device), zap.String("plan", string(d.Plan)))
	return d, nil
}

func (p *Planner) inPlace(ctx context.Context, d types.Decision, report func(types.Step)) error {
	if err := checkpoint(ctx, d.Device); err != nil {
		return err
	}
	report(types.StepUnmount)
	if err := p.takeOffline(ctx, d); err != nil {
		return err
	}

	if err := checkpoint(ctx, d.Device); err != nil {
		return err
	}
	report(types.StepConvert)
	return p.format.ConvertInPlace(ctx, d.Device, d.Target)
}

func (p *Planner) backupRestore(ctx context.Context, d types.Decision, report func(types.Step)) error {
	steps := []struct {
		step types.Step
		run  func() error
	}{
		{types.StepCapacity, func() error { return p.capacity.Check(ctx, d.Device) }},
		{types.StepStage, func() error {
			_, err := p.staging.Allocate(d.Device)
			return err
		}},
		{types.StepBackup, func() error { return p.copier.Backup(ctx, d.Device, p.staging.Path()) }},
		{types.StepUnmount, func() error { return p.takeOffline(ctx, d) }},
		{types.StepFormat, func() error { return p.format.Reformat(ctx, d.Device, d.Target) }},
		{types.StepWaitReady, func() error { return p.format.WaitUntilReady(ctx, d.Device) }},
		{types.StepRestore, func() error { return p.copier.Restore(ctx, p.staging.Path(), d.Device) }},
	}

	// Release is a no-op until Allocate succeeds.
	defer p.staging.Release()

	for _, s := range steps {
		if err := checkpoint(ctx, d.Device); err != nil {
			return err
		}
		report(s.step)
		if err := s.run(); err != nil {
			return types.Classify(err, types.KindUnexpectedFailure, d.Device)
		}
	}
	report(types.StepCleanup)
	return nil
}

// takeOffline confirms the device still matches the plan and dismounts it.
// The check is made once, before the first destructive step; after the
// dismount any query would remount the volume.
func (p *Planner) takeOffline(ctx context.Context, d types.Decision) error {
	info, err := p.ops.VolumeInfo(ctx, d.Device)
	if err != nil {
		return types.NewError(types.KindDeviceChanged, d.Device,
			fmt.Sprintf("%s is no longer available", d.Device), err)
	}
	if !strings.EqualFold(strings.TrimSpace(info.Filesystem), string(d.Source)) {
		return types.Errorf(types.KindDeviceChanged, d.Device,
			"%s changed from %s to %s since planning", d.Device, d.Source, info.Filesystem)
	}
	return p.guard.ForceUnmount(ctx, d.Device)
}

// checkpoint reports Cancelled once ctx is done.
func checkpoint(ctx context.Context, device string) error {
	if err := ctx.Err(); err != nil {
		return types.Cancelled(device, err)
	}
	return nil
}
