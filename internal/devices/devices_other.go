//go:build !windows

package devices

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/pdiddy/fsconvert/pkg/types"
)

func (l *Lister) list(ctx context.Context) ([]types.Device, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}

	var devs []types.Device
	for _, p := range parts {
		if !isRemovableMount(p.Mountpoint) {
			continue
		}
		dev := types.Device{
			Identifier: p.Mountpoint,
			Filesystem: types.Filesystem(p.Fstype),
			Removable:  true,
		}
		if fs, err := types.ParseFilesystem(fsAlias(p.Fstype)); err == nil {
			dev.Filesystem = fs
		}
		l.fillUsage(ctx, &dev, p.Mountpoint)
		devs = append(devs, dev)
	}
	return devs, nil
}

// fsAlias maps kernel filesystem names onto the labels Windows reports.
func fsAlias(fstype string) string {
	switch fstype {
	case "vfat", "msdos":
		return "FAT32"
	case "ntfs3", "fuseblk", "ntfs-3g":
		return "NTFS"
	}
	return fstype
}
