// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sysopstest provides a scripted sysops.Ops for tests. Nothing it
// does touches a real device.
package sysopstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/fsconvert/internal/sysops"
)

// Response is one scripted outcome for a command.
type Response struct {
	ExitCode int
	Output   string
	Err      error

	// Block makes the command wait until its context ends, simulating a
	// hung tool. The context error is returned.
	Block bool
}

// Fake implements sysops.Ops from scripted data. Zero values are usable:
// unknown commands exit 0, unknown devices are missing.
type Fake struct {
	mu sync.Mutex

	// Volumes maps a device ("E:") to its filesystem and label.
	Volumes map[string]sysops.VolumeInfo

	// Usages maps a path (device root or system drive) to space figures.
	Usages map[string]sysops.Usage

	// Responses maps a command name to outcomes consumed in order. The last
	// outcome repeats once the list is exhausted.
	Responses map[string][]Response

	// HandleScans is consumed one entry per OpenHandles call; the last
	// entry repeats.
	HandleScans [][]sysops.Handle

	// NotReady maps a path to the number of Listable calls that fail before
	// it becomes listable. Missing marks paths that never become listable.
	NotReady map[string]int
	Missing  map[string]bool

	DismountErr  error
	RegisterErr  error
	TerminateErr error
	Root         string

	// OnRun, when set, is called before a command's response is produced.
	OnRun func(cmd sysops.Command)

	// VolumeHook, when set, replaces the Volumes lookup. call counts from 1.
	VolumeHook func(device string, call int) (sysops.VolumeInfo, error)

	calls       []sysops.Command
	terminated  []int32
	dismounted  []string
	registered  []string
	scans       int
	volumeCalls map[string]int
	listCalls   map[string]int
}

var _ sysops.Ops = (*Fake)(nil)

func (f *Fake) Run(ctx context.Context, cmd sysops.Command) (sysops.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	resp := f.next(cmd.Name)
	hook := f.OnRun
	f.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	if resp.Block {
		<-ctx.Done()
		return sysops.Result{ExitCode: -1}, fmt.Errorf("running %s: %w", cmd.Name, ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return sysops.Result{ExitCode: -1}, fmt.Errorf("running %s: %w", cmd.Name, err)
	}
	if resp.Err != nil {
		return sysops.Result{ExitCode: -1}, resp.Err
	}
	return sysops.Result{ExitCode: resp.ExitCode, Output: resp.Output}, nil
}

func (f *Fake) next(name string) Response {
	queue := f.Responses[name]
	if len(queue) == 0 {
		return Response{}
	}
	r := queue[0]
	if len(queue) > 1 {
		f.Responses[name] = queue[1:]
	}
	return r
}

func (f *Fake) VolumeInfo(ctx context.Context, device string) (sysops.VolumeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.volumeCalls == nil {
		f.volumeCalls = map[string]int{}
	}
	f.volumeCalls[device]++
	if f.VolumeHook != nil {
		return f.VolumeHook(device, f.volumeCalls[device])
	}
	v, ok := f.Volumes[device]
	if !ok {
		return sysops.VolumeInfo{}, fmt.Errorf("volume %s not found", device)
	}
	return v, nil
}

func (f *Fake) DiskUsage(ctx context.Context, path string) (sysops.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Usages[path]
	if !ok {
		return sysops.Usage{}, fmt.Errorf("no usage for %s", path)
	}
	return u, nil
}

func (f *Fake) OpenHandles(ctx context.Context, prefix string) ([]sysops.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if len(f.HandleScans) == 0 {
		return nil, nil
	}
	i := f.scans - 1
	if i >= len(f.HandleScans) {
		i = len(f.HandleScans) - 1
	}
	return f.HandleScans[i], nil
}

func (f *Fake) Terminate(ctx context.Context, pid int32, wait time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return f.TerminateErr
}

func (f *Fake) Dismount(device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismounted = append(f.dismounted, device)
	return f.DismountErr
}

func (f *Fake) RegisterMountPoint(device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, device)
	return f.RegisterErr
}

func (f *Fake) Listable(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listCalls == nil {
		f.listCalls = map[string]int{}
	}
	f.listCalls[path]++
	if f.Missing[path] {
		return false
	}
	return f.listCalls[path] > f.NotReady[path]
}

// SetMissing changes whether path is listable. Safe to call from OnRun.
func (f *Fake) SetMissing(path string, missing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing == nil {
		f.Missing = map[string]bool{}
	}
	f.Missing[path] = missing
}

func (f *Fake) SystemDrive() string {
	if f.Root == "" {
		return `C:\`
	}
	return f.Root
}

// Calls returns every command run so far.
func (f *Fake) Calls() []sysops.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sysops.Command(nil), f.calls...)
}

// CallNames returns the names of every command run so far.
func (f *Fake) CallNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how many times name was run.
func (f *Fake) Count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (f *Fake) Terminated() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.terminated...)
}

func (f *Fake) Dismounted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dismounted...)
}

func (f *Fake) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registered...)
}

// Scans returns how many OpenHandles calls were made.
func (f *Fake) Scans() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

// Touched reports whether anything device-affecting happened: a command,
// a termination, a dismount or a mount-point change.
func (f *Fake) Touched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls) > 0 || len(f.terminated) > 0 || len(f.dismounted) > 0 || len(f.registered) > 0
}

// ErrScripted is a generic scripted failure.
var ErrScripted = errors.New("scripted failure")
