//go:build !windows

package sysops

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// VolumeInfo matches device against mounted partitions. Drive letters do
// not exist here, so device is treated as a mount point.
func (h *Host) VolumeInfo(ctx context.Context, device string) (VolumeInfo, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("listing partitions: %w", err)
	}
	for _, p := range parts {
		if p.Mountpoint == device || p.Device == device {
			return VolumeInfo{Filesystem: p.Fstype}, nil
		}
	}
	return VolumeInfo{}, fmt.Errorf("volume %s not mounted", device)
}

func (h *Host) Dismount(device string) error {
	return fmt.Errorf("dismounting %s: %w", device, ErrUnsupported)
}

func (h *Host) RegisterMountPoint(device string) error {
	return fmt.Errorf("registering mount point %s: %w", device, ErrUnsupported)
}

func systemDrive() string {
	return "/"
}

func isElevated() bool {
	return os.Geteuid() == 0
}
