// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pdiddy/fsconvert/internal/sysops"
	"github.com/pdiddy/fsconvert/internal/sysops/sysopstest"
	"github.com/pdiddy/fsconvert/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testConfig returns defaults with every delay shrunk to milliseconds and
// staging rooted in a temp dir.
func testConfig(t *testing.T) types.Config {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.Guard.RetryDelay = time.Millisecond
	cfg.Guard.TerminateWait = time.Millisecond
	cfg.Guard.UnmountDelay = time.Millisecond
	cfg.Copy.RetryDelay = time.Millisecond
	cfg.Copy.AttemptTimeout = time.Second
	cfg.Format.FormatTimeout = time.Second
	cfg.Format.ConvertTimeout = time.Second
	cfg.Format.ReadyInterval = time.Millisecond
	cfg.Format.SettleDelay = time.Millisecond
	cfg.Staging.Root = filepath.Join(t.TempDir(), "Temp")
	return cfg
}

func newFake(device, fs string, used, free uint64) *sysopstest.Fake {
	return &sysopstest.Fake{
		Volumes: map[string]sysops.VolumeInfo{device: {Filesystem: fs}},
		Usages: map[string]sysops.Usage{
			types.RootPath(device): {Used: used},
			`C:\`:                  {Free: free},
		},
	}
}

func recorder() (func(types.Progress), func() []types.Progress) {
	var got []types.Progress
	return func(p types.Progress) { got = append(got, p) }, func() []types.Progress { return got }
}

func stagingEntries(t *testing.T, cfg types.Config) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(cfg.Staging.Root)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestDecide(t *testing.T) {
	tests := []struct {
		current types.Filesystem
		target  types.Filesystem
		want    types.Plan
	}{
		{"NTFS", types.NTFS, types.PlanNoOp},
		{"ntfs", types.NTFS, types.PlanNoOp},
		{"FAT32", types.FAT32, types.PlanNoOp},
		{"FAT", types.FAT32, types.PlanNoOp},
		{"FAT32", types.FAT, types.PlanNoOp},
		{"exFAT", types.ExFAT, types.PlanNoOp},
		{"EXFAT", types.ExFAT, types.PlanNoOp},
		{"FAT32", types.NTFS, types.PlanInPlace},
		{"FAT", types.NTFS, types.PlanInPlace},
		{"fat32", types.NTFS, types.PlanInPlace},
		{"NTFS", types.FAT32, types.PlanBackupRestore},
		{"NTFS", types.FAT, types.PlanBackupRestore},
		{"NTFS", types.ExFAT, types.PlanBackupRestore},
		{"exFAT", types.NTFS, types.PlanBackupRestore},
		{"exFAT", types.FAT32, types.PlanBackupRestore},
		{"FAT32", types.ExFAT, types.PlanBackupRestore},
		{"REFS", types.NTFS, types.PlanBackupRestore},
	}
	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.current, tt.target))
		})
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		fake     *sysopstest.Fake
		target   types.Filesystem
		wantPlan types.Plan
		wantSrc  types.Filesystem
		wantKind types.ErrorKind
	}{
		{
			name:     "lowercase letter accepted",
			device:   "e",
			fake:     newFake("E:", "FAT32", 0, 0),
			target:   types.NTFS,
			wantPlan: types.PlanInPlace,
			wantSrc:  types.FAT32,
		},
		{
			name:     "exfat canonicalized",
			device:   "E:",
			fake:     newFake("E:", "EXFAT", 0, 0),
			target:   types.NTFS,
			wantPlan: types.PlanBackupRestore,
			wantSrc:  types.ExFAT,
		},
		{
			name:     "invalid identifier",
			device:   "EE:",
			fake:     newFake("E:", "FAT32", 0, 0),
			target:   types.NTFS,
			wantKind: types.KindInvalidIdentifier,
		},
		{
			name:   "device busy",
			device: "E:",
			fake: func() *sysopstest.Fake {
				f := newFake("E:", "FAT32", 0, 0)
				f.HandleScans = [][]sysops.Handle{{{PID: 7, Name: "word.exe", Path: `E:\a.docx`}}}
				return f
			}(),
			target:   types.NTFS,
			wantKind: types.KindDeviceBusy,
		},
		{
			name:     "volume unreadable",
			device:   "E:",
			fake:     &sysopstest.Fake{},
			target:   types.NTFS,
			wantKind: types.KindDetectionFailed,
		},
		{
			name:     "empty filesystem label",
			device:   "E:",
			fake:     newFake("E:", "  ", 0, 0),
			target:   types.NTFS,
			wantKind: types.KindDetectionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.fake, testConfig(t), zaptest.NewLogger(t))
			d, err := p.Plan(context.Background(), tt.device, tt.target)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "E:", d.Device)
			assert.Equal(t, tt.wantSrc, d.Source)
			assert.Equal(t, tt.wantPlan, d.Plan)
			assert.False(t, tt.fake.Touched(), "planning must not run tools or dismount")
		})
	}
}

func TestExecute_NoOp(t *testing.T) {
	fake := newFake("E:", "FAT", 0, 0)
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))
	progress, got := recorder()

	d, err := p.Execute(context.Background(), types.ConversionRequest{Device: "E:", Target: types.FAT32}, progress)
	require.NoError(t, err)
	assert.Equal(t, types.PlanNoOp, d.Plan)
	assert.False(t, fake.Touched())
	assert.Empty(t, stagingEntries(t, cfg))

	events := got()
	require.NotEmpty(t, events)
	assert.Equal(t, 0, events[0].Percent)
	assert.Equal(t, 100, events[len(events)-1].Percent)
}

func TestExecute_InPlace(t *testing.T) {
	fake := newFake("E:", "FAT32", 10*humanize.GByte, 100*humanize.GByte)
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))
	progress, got := recorder()

	d, err := p.Execute(context.Background(), types.ConversionRequest{Device: "E:", Target: types.NTFS}, progress)
	require.NoError(t, err)
	assert.Equal(t, types.PlanInPlace, d.Plan)
	assert.Equal(t, []string{"convert"}, fake.CallNames())
	assert.Equal(t, []string{"E:"}, fake.Dismounted())
	assert.Equal(t, []string{"E:"}, fake.Registered())
	assert.Empty(t, stagingEntries(t, cfg), "in-place convert never stages data")

	var steps []types.Step
	for _, e := range got() {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, []types.Step{
		types.StepValidate, types.StepPlan, types.StepUnmount, types.StepConvert, types.StepDone,
	}, steps)
}

func TestExecute_InPlaceUnmountFails(t *testing.T) {
	fake := newFake("E:", "FAT32", 0, 0)
	fake.DismountErr = sysopstest.ErrScripted
	p := New(fake, testConfig(t), zaptest.NewLogger(t))

	_, err := p.Execute(context.Background(), types.ConversionRequest{Device: "E:", Target: types.NTFS}, nil)
	assert.Equal(t, types.KindUnmountFailed, types.KindOf(err))
	assert.Zero(t, fake.Count("convert"))
}

func TestExecute_BackupRestore(t *testing.T) {
	fake := newFake("F:", "NTFS", 10*humanize.GByte, 100*humanize.GByte)
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))
	progress, got := recorder()

	var stagedDuringRun string
	fake.OnRun = func(cmd sysops.Command) {
		if cmd.Name == "format" {
			stagedDuringRun = p.Staging().Path()
		}
	}

	d, err := p.Execute(context.Background(), types.ConversionRequest{Device: "F:", Target: types.FAT32}, progress)
	require.NoError(t, err)
	assert.Equal(t, types.PlanBackupRestore, d.Plan)
	assert.Equal(t, []string{"robocopy", "format", "robocopy"}, fake.CallNames())

	calls := fake.Calls()
	assert.Equal(t, `F:\`, calls[0].Args[0])
	assert.Equal(t, stagedDuringRun, calls[0].Args[1])
	assert.Equal(t, []string{"F:", "/FS:FAT32", "/Q", "/V:USB-F"}, calls[1].Args)
	assert.Equal(t, stagedDuringRun, calls[2].Args[0])
	assert.Equal(t, `F:\`, calls[2].Args[1])

	assert.NotEmpty(t, stagedDuringRun)
	assert.NoDirExists(t, stagedDuringRun)
	assert.Empty(t, p.Staging().Path())

	var pct []int
	for _, e := range got() {
		pct = append(pct, e.Percent)
	}
	assert.Equal(t, []int{0, 5, 10, 15, 20, 45, 55, 65, 70, 95, 100}, pct)
	assert.IsIncreasing(t, pct)
}

func TestExecute_InsufficientSpaceCreatesNoStaging(t *testing.T) {
	fake := newFake("F:", "NTFS", 50*humanize.GByte, 40*humanize.GByte)
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))

	_, err := p.Execute(context.Background(), types.ConversionRequest{Device: "F:", Target: types.FAT32}, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindInsufficientSpace, types.KindOf(err))
	assert.NoDirExists(t, cfg.Staging.Root)
	assert.False(t, fake.Touched())
}

func TestExecute_FailuresReleaseStaging(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *sysopstest.Fake)
		wantKind types.ErrorKind
		wantRuns []string
	}{
		{
			name: "backup fails",
			setup: func(f *sysopstest.Fake) {
				f.Responses = map[string][]sysopstest.Response{"robocopy": {{ExitCode: 16}}}
			},
			wantKind: types.KindCopyFailed,
			wantRuns: []string{"robocopy", "robocopy", "robocopy"},
		},
		{
			name:     "dismount fails",
			setup:    func(f *sysopstest.Fake) { f.DismountErr = sysopstest.ErrScripted },
			wantKind: types.KindUnmountFailed,
			wantRuns: []string{"robocopy"},
		},
		{
			name: "format fails",
			setup: func(f *sysopstest.Fake) {
				f.Responses = map[string][]sysopstest.Response{"format": {{ExitCode: 1, Output: "access denied"}}}
			},
			wantKind: types.KindFormatFailed,
			wantRuns: []string{"robocopy", "format"},
		},
		{
			name: "device never returns",
			setup: func(f *sysopstest.Fake) {
				f.OnRun = func(cmd sysops.Command) {
					if cmd.Name == "format" {
						f.SetMissing(`F:\`, true)
					}
				}
			},
			wantKind: types.KindDeviceNotReadyAfterFormat,
			wantRuns: []string{"robocopy", "format"},
		},
		{
			name: "restore fails",
			setup: func(f *sysopstest.Fake) {
				f.Responses = map[string][]sysopstest.Response{"robocopy": {{ExitCode: 1}, {ExitCode: 8}}}
			},
			wantKind: types.KindCopyFailed,
			wantRuns: []string{"robocopy", "format", "robocopy", "robocopy", "robocopy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake("F:", "NTFS", humanize.GByte, 100*humanize.GByte)
			tt.setup(fake)
			cfg := testConfig(t)
			p := New(fake, cfg, zaptest.NewLogger(t))

			_, err := p.Execute(context.Background(), types.ConversionRequest{Device: "F:", Target: types.FAT32}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			assert.Equal(t, tt.wantRuns, fake.CallNames())
			assert.Empty(t, stagingEntries(t, cfg), "staging must be released on failure")
		})
	}
}

func TestExecute_DeviceChangedBeforeUnmount(t *testing.T) {
	tests := []struct {
		name string
		hook func(device string, call int) (sysops.VolumeInfo, error)
	}{
		{
			name: "device removed",
			hook: func(_ string, call int) (sysops.VolumeInfo, error) {
				if call == 1 {
					return sysops.VolumeInfo{Filesystem: "NTFS"}, nil
				}
				return sysops.VolumeInfo{}, sysopstest.ErrScripted
			},
		},
		{
			name: "different volume inserted",
			hook: func(_ string, call int) (sysops.VolumeInfo, error) {
				if call == 1 {
					return sysops.VolumeInfo{Filesystem: "NTFS"}, nil
				}
				return sysops.VolumeInfo{Filesystem: "exFAT"}, nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake("F:", "NTFS", humanize.GByte, 100*humanize.GByte)
			fake.VolumeHook = tt.hook
			cfg := testConfig(t)
			p := New(fake, cfg, zaptest.NewLogger(t))

			_, err := p.Execute(context.Background(), types.ConversionRequest{Device: "F:", Target: types.FAT32}, nil)
			assert.Equal(t, types.KindDeviceChanged, types.KindOf(err))
			assert.Empty(t, fake.Dismounted())
			assert.Zero(t, fake.Count("format"))
			assert.Empty(t, stagingEntries(t, cfg))
		})
	}
}

func TestExecute_CancelMidRestore(t *testing.T) {
	fake := newFake("F:", "NTFS", humanize.GByte, 100*humanize.GByte)
	fake.Responses = map[string][]sysopstest.Response{"robocopy": {{ExitCode: 1}, {Block: true}}}
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var copies atomic.Int32
	fake.OnRun = func(cmd sysops.Command) {
		if cmd.Name == "robocopy" && copies.Add(1) == 2 {
			cancel()
		}
	}

	_, err := p.Execute(ctx, types.ConversionRequest{Device: "F:", Target: types.FAT32}, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindCancelled, types.KindOf(err))
	assert.Equal(t, []string{"robocopy", "format", "robocopy"}, fake.CallNames(),
		"the restore is not retried and the reformat is not undone")
	assert.Empty(t, stagingEntries(t, cfg))
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	fake := newFake("E:", "FAT32", 0, 0)
	p := New(fake, testConfig(t), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, types.ConversionRequest{Device: "E:", Target: types.NTFS}, nil)
	assert.Equal(t, types.KindCancelled, types.KindOf(err))
	assert.False(t, fake.Touched())
}

func TestExecute_InvalidRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      types.ConversionRequest
		wantKind types.ErrorKind
	}{
		{name: "bad identifier", req: types.ConversionRequest{Device: "1:", Target: types.NTFS}, wantKind: types.KindInvalidIdentifier},
		{name: "bad target", req: types.ConversionRequest{Device: "E:", Target: "HFS+"}, wantKind: types.KindUnsupportedFilesystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake("E:", "FAT32", 0, 0)
			p := New(fake, testConfig(t), zaptest.NewLogger(t))
			_, err := p.Execute(context.Background(), tt.req, nil)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			assert.False(t, fake.Touched())
		})
	}
}

func TestExecute_PanicRecovered(t *testing.T) {
	fake := newFake("F:", "NTFS", humanize.GByte, 100*humanize.GByte)
	fake.OnRun = func(cmd sysops.Command) {
		if cmd.Name == "format" {
			panic("driver exploded")
		}
	}
	cfg := testConfig(t)
	p := New(fake, cfg, zaptest.NewLogger(t))

	_, err := p.Execute(context.Background(), types.ConversionRequest{Device: "F:", Target: types.FAT32}, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindUnexpectedFailure, types.KindOf(err))
	assert.Contains(t, err.Error(), "driver exploded")
	assert.Empty(t, stagingEntries(t, cfg))
}
