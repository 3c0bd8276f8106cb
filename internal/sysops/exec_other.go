//go:build !windows

package sysops

import "os/exec"

func configure(cmd *exec.Cmd) {}
