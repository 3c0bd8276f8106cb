// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/fsconvert/internal/sysops/sysopstest"
	"github.com/pdiddy/fsconvert/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() types.FormatConfig {
	return types.FormatConfig{
		FormatTimeout:  time.Second,
		ConvertTimeout: time.Second,
		ReadyAttempts:  10,
		ReadyInterval:  time.Millisecond,
		SettleDelay:    time.Millisecond,
		LabelPrefix:    "USB-",
	}
}

func TestVolumeLabel(t *testing.T) {
	e := New(&sysopstest.Fake{}, testConfig(), nil)
	assert.Equal(t, "USB-E", e.VolumeLabel("E:"))
	assert.Equal(t, "USB-F", e.VolumeLabel("F:"))
}

func TestReformat_Command(t *testing.T) {
	fake := &sysopstest.Fake{}
	e := New(fake, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, e.Reformat(context.Background(), "F:", types.FAT32))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "format", calls[0].Name)
	assert.Equal(t, []string{"F:", "/FS:FAT32", "/Q", "/V:USB-F"}, calls[0].Args)
	assert.Equal(t, "Y\r\n", calls[0].Stdin)
}

func TestReformat_Failures(t *testing.T) {
	tests := []struct {
		name     string
		resp     sysopstest.Response
		wantKind types.ErrorKind
		wantText string
	}{
		{
			name:     "nonzero exit",
			resp:     sysopstest.Response{ExitCode: 1, Output: "Insufficient privileges"},
			wantKind: types.KindFormatFailed,
			wantText: "Insufficient privileges",
		},
		{
			name:     "cannot start",
			resp:     sysopstest.Response{Err: sysopstest.ErrScripted},
			wantKind: types.KindFormatFailed,
		},
		{
			name:     "timeout",
			resp:     sysopstest.Response{Block: true},
			wantKind: types.KindFormatFailed,
			wantText: "timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &sysopstest.Fake{Responses: map[string][]sysopstest.Response{"format": {tt.resp}}}
			cfg := testConfig()
			cfg.FormatTimeout = 10 * time.Millisecond
			e := New(fake, cfg, zaptest.NewLogger(t))

			err := e.Reformat(context.Background(), "E:", types.NTFS)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestConvertInPlace(t *testing.T) {
	fake := &sysopstest.Fake{}
	e := New(fake, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, e.ConvertInPlace(context.Background(), "E:", types.NTFS))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "convert", calls[0].Name)
	assert.Equal(t, []string{"E:", "/FS:NTFS", "/X"}, calls[0].Args)
	assert.Equal(t, []string{"E:"}, fake.Registered())
}

func TestConvertInPlace_Failures(t *testing.T) {
	tests := []struct {
		name     string
		resp     sysopstest.Response
		wantKind types.ErrorKind
	}{
		{name: "nonzero exit", resp: sysopstest.Response{ExitCode: 1}, wantKind: types.KindFormatFailed},
		{name: "timeout", resp: sysopstest.Response{Block: true}, wantKind: types.KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &sysopstest.Fake{Responses: map[string][]sysopstest.Response{"convert": {tt.resp}}}
			cfg := testConfig()
			cfg.ConvertTimeout = 10 * time.Millisecond
			e := New(fake, cfg, zaptest.NewLogger(t))

			err := e.ConvertInPlace(context.Background(), "E:", types.NTFS)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			assert.Empty(t, fake.Registered())
		})
	}
}

func TestConvertInPlace_RegisterFailureIsWarning(t *testing.T) {
	fake := &sysopstest.Fake{RegisterErr: sysopstest.ErrScripted}
	e := New(fake, testConfig(), zaptest.NewLogger(t))
	assert.NoError(t, e.ConvertInPlace(context.Background(), "E:", types.NTFS))
}

func TestConvertInPlace_NonNTFSTarget(t *testing.T) {
	fake := &sysopstest.Fake{}
	e := New(fake, testConfig(), zaptest.NewLogger(t))

	err := e.ConvertInPlace(context.Background(), "E:", types.ExFAT)
	assert.Equal(t, types.KindUnsupportedFilesystem, types.KindOf(err))
	assert.False(t, fake.Touched())
}

func TestWaitUntilReady(t *testing.T) {
	tests := []struct {
		name     string
		fake     *sysopstest.Fake
		wantKind types.ErrorKind
	}{
		{name: "ready at once", fake: &sysopstest.Fake{}},
		{name: "ready on tenth check", fake: &sysopstest.Fake{NotReady: map[string]int{`E:\`: 9}}},
		{
			name:     "never ready",
			fake:     &sysopstest.Fake{NotReady: map[string]int{`E:\`: 10}},
			wantKind: types.KindDeviceNotReadyAfterFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.fake, testConfig(), zaptest.NewLogger(t))
			err := e.WaitUntilReady(context.Background(), "E:")
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestWaitUntilReady_Cancelled(t *testing.T) {
	fake := &sysopstest.Fake{Missing: map[string]bool{`E:\`: true}}
	cfg := testConfig()
	cfg.ReadyInterval = time.Hour
	e := New(fake, cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.Equal(t, types.KindCancelled, types.KindOf(e.WaitUntilReady(ctx, "E:")))
}
