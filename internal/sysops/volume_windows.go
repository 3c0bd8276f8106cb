//go:build windows

package sysops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const fsctlDismountVolume = 0x00090020

func (h *Host) VolumeInfo(ctx context.Context, device string) (VolumeInfo, error) {
	root, err := windows.UTF16PtrFromString(device + `\`)
	if err != nil {
		return VolumeInfo{}, err
	}
	var volName, fsName [windows.MAX_PATH + 1]uint16
	var serial, maxComponent, flags uint32
	err = windows.GetVolumeInformation(root,
		&volName[0], uint32(len(volName)),
		&serial, &maxComponent, &flags,
		&fsName[0], uint32(len(fsName)))
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("reading volume information for %s: %w", device, err)
	}
	return VolumeInfo{
		Filesystem: windows.UTF16ToString(fsName[:]),
		Label:      windows.UTF16ToString(volName[:]),
	}, nil
}

func (h *Host) Dismount(device string) error {
	path, err := windows.UTF16PtrFromString(`\\.\` + device)
	if err != nil {
		return err
	}
	handle, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return fmt.Errorf("opening volume %s: %w", device, err)
	}
	defer windows.CloseHandle(handle)

	var returned uint32
	if err := windows.DeviceIoControl(handle, fsctlDismountVolume, nil, 0, nil, 0, &returned, nil); err != nil {
		return fmt.Errorf("dismounting volume %s: %w", device, err)
	}
	h.log.Info("volume dismounted", zap.String("device", device))
	return nil
}

func (h *Host) RegisterMountPoint(device string) error {
	mountPoint, err := windows.UTF16PtrFromString(device + `\`)
	if err != nil {
		return err
	}
	var volume [64]uint16
	if err := windows.GetVolumeNameForVolumeMountPoint(mountPoint, &volume[0], uint32(len(volume))); err != nil {
		return fmt.Errorf("resolving volume name for %s: %w", device, err)
	}
	err = windows.SetVolumeMountPoint(mountPoint, &volume[0])
	if errors.Is(err, windows.ERROR_DIR_NOT_EMPTY) {
		// The letter is still bound to the volume.
		return nil
	}
	if err != nil {
		return fmt.Errorf("setting mount point %s: %w", device, err)
	}
	return nil
}

func systemDrive() string {
	d := os.Getenv("SystemDrive")
	if d == "" {
		d = "C:"
	}
	if !strings.HasSuffix(d, `\`) {
		d += `\`
	}
	return d
}

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
