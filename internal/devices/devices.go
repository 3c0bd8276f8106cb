// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package devices enumerates removable volumes. Every call queries the host
// afresh; nothing is cached between calls.
package devices

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/pkg/types"
)

// Lister queries the host for removable volumes.
type Lister struct {
	ops sysops.Ops
	log *zap.Logger
}

// New returns a Lister. ops fills in space figures the primary query
// leaves out.
func New(ops sysops.Ops, log *zap.Logger) *Lister {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lister{ops: ops, log: log}
}

// List returns the removable volumes currently attached, sorted by
// identifier.
func (l *Lister) List(ctx context.Context) ([]types.Device, error) {
	devs, err := l.list(ctx)
	if err != nil {
		return nil, types.NewError(types.KindDetectionFailed, "", "could not enumerate removable devices", err)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Identifier < devs[j].Identifier })
	l.log.Debug("devices listed", zap.Int("count", len(devs)))
	return devs, nil
}

// Lookup returns the removable volume named id ("e", "E:" or a mount
// point).
func (l *Lister) Lookup(ctx context.Context, id string) (types.Device, error) {
	want := strings.TrimSpace(id)
	if n, err := types.NormalizeIdentifier(want); err == nil {
		want = n
	}
	devs, err := l.List(ctx)
	if err != nil {
		return types.Device{}, err
	}
	for _, d := range devs {
		if strings.EqualFold(d.Identifier, want) {
			return d, nil
		}
	}
	return types.Device{}, types.Errorf(types.KindDetectionFailed, want, "no removable device %s", want)
}

// fillUsage completes space figures from a disk usage query when the
// primary source reported no size.
func (l *Lister) fillUsage(ctx context.Context, d *types.Device, path string) {
	if d.TotalBytes > 0 {
		return
	}
	u, err := l.ops.DiskUsage(ctx, path)
	if err != nil {
		l.log.Debug("usage unavailable", zap.String("device", d.Identifier), zap.Error(err))
		return
	}
	d.TotalBytes, d.UsedBytes, d.FreeBytes = u.Total, u.Used, u.Free
}

// logicalDisk mirrors the Win32_LogicalDisk properties that are queried.
// Nullable properties are pointers; an empty card reader slot has no
// filesystem and no size.
type logicalDisk struct {
	DeviceID   string
	FileSystem *string
	VolumeName *string
	Size       *uint64
	FreeSpace  *uint64
}

// removableDriveType is Win32_LogicalDisk.DriveType for removable media.
const removableDriveType = 2

func (d logicalDisk) device() types.Device {
	dev := types.Device{Identifier: strings.ToUpper(d.DeviceID), Removable: true}
	if d.FileSystem != nil {
		dev.Filesystem = types.Filesystem(*d.FileSystem)
		if fs, err := types.ParseFilesystem(*d.FileSystem); err == nil {
			dev.Filesystem = fs
		}
	}
	if d.VolumeName != nil {
		dev.VolumeLabel = *d.VolumeName
	}
	if d.Size != nil {
		dev.TotalBytes = *d.Size
	}
	if d.FreeSpace != nil {
		dev.FreeBytes = *d.FreeSpace
	}
	if dev.TotalBytes >= dev.FreeBytes {
		dev.UsedBytes = dev.TotalBytes - dev.FreeBytes
	}
	return dev
}

// removableMountRoots are where desktop Linux and macOS mount removable
// media.
var removableMountRoots = []string{"/media/", "/run/media/", "/mnt/", "/Volumes/"}

func isRemovableMount(mountpoint string) bool {
	for _, root := range removableMountRoots {
		if strings.HasPrefix(mountpoint, root) && len(mountpoint) > len(root) {
			return true
		}
	}
	return false
}
