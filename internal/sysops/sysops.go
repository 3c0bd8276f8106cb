// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sysops is the boundary between the conversion pipeline and the
// host. Every external effect (running format/convert/robocopy, scanning
// processes, dismounting a volume) goes through Ops so it can be replaced
// by a scripted fake in tests.
package sysops

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
)

// ErrUnsupported is returned by volume operations on hosts without the
// native tooling.
var ErrUnsupported = errors.New("operation not supported on this platform")

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string

	// Stdin is written to the process's standard input when non-empty.
	// Used to auto-confirm destructive prompts.
	Stdin string
}

// Result holds the exit code and combined output of a finished process.
type Result struct {
	ExitCode int
	Output   string
}

// VolumeInfo is the filesystem and label of a mounted volume.
type VolumeInfo struct {
	Filesystem string
	Label      string
}

// Usage is a space snapshot of the filesystem containing a path.
type Usage struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// Handle is a process holding at least one open file under a scanned prefix.
type Handle struct {
	PID  int32
	Name string
	Path string
}

// Ops is the set of host operations the pipeline depends on.
type Ops interface {
	// Run executes cmd to completion. A non-nil error means the process
	// could not be started or was stopped by ctx; a nonzero exit code is
	// reported through Result, not as an error.
	Run(ctx context.Context, cmd Command) (Result, error)

	// VolumeInfo returns the filesystem name and label of device.
	VolumeInfo(ctx context.Context, device string) (VolumeInfo, error)

	// DiskUsage returns space figures for the filesystem containing path.
	DiskUsage(ctx context.Context, path string) (Usage, error)

	// OpenHandles lists processes with open files under prefix. Processes
	// that cannot be inspected are skipped.
	OpenHandles(ctx context.Context, prefix string) ([]Handle, error)

	// Terminate asks pid to exit and waits up to wait for it to go away.
	Terminate(ctx context.Context, pid int32, wait time.Duration) error

	// Dismount issues a low-level dismount request on the raw volume.
	Dismount(device string) error

	// RegisterMountPoint re-binds device's drive letter to its volume.
	RegisterMountPoint(device string) error

	// Listable reports whether path exists and its entries can be read.
	Listable(path string) bool

	// SystemDrive returns the root of the system drive (e.g. `C:\`).
	SystemDrive() string
}

// Host implements Ops against the real operating system.
type Host struct {
	exec executor
	log  *zap.Logger
}

// NewHost returns the production Ops implementation.
func NewHost(log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{exec: defaultExec, log: log}
}

func (h *Host) Listable(path string) bool {
	_, err := os.ReadDir(path)
	return err == nil
}

func (h *Host) SystemDrive() string {
	return systemDrive()
}

// IsElevated reports whether the current process has administrative rights.
func IsElevated() bool {
	return isElevated()
}

var _ Ops = (*Host)(nil)
