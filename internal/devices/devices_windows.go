//go:build windows

package devices

import (
	"context"
	"fmt"

	"github.com/StackExchange/wmi"

	"github.com/pdiddy/fsconvert/pkg/types"
)

func (l *Lister) list(ctx context.Context) ([]types.Device, error) {
	var disks []logicalDisk
	query := fmt.Sprintf(
		"SELECT DeviceID, FileSystem, VolumeName, Size, FreeSpace FROM Win32_LogicalDisk WHERE DriveType = %d",
		removableDriveType)
	if err := wmi.Query(query, &disks); err != nil {
		return nil, fmt.Errorf("querying Win32_LogicalDisk: %w", err)
	}

	devs := make([]types.Device, 0, len(disks))
	for _, d := range disks {
		if d.FileSystem == nil {
			// Empty slot.
			continue
		}
		dev := d.device()
		l.fillUsage(ctx, &dev, types.RootPath(dev.Identifier))
		devs = append(devs, dev)
	}
	return devs, nil
}
