//go:build windows

package sysops

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configure keeps console tools from flashing a window.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
