// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/fsconvert/pkg/types"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "debug_20260314_092653.log", FileName(ts))
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(types.LoggingConfig{Level: "info", Format: "console"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	log.Debug("hidden")
	log.Info("plan decided", zap.String("device", "E:"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "plan decided")
	assert.Contains(t, out, `"device": "E:"`)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(types.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	log.Info("hidden")
	log.Warn("device in use", zap.Int("processes", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "device in use", entry["msg"])
	assert.Equal(t, float64(2), entry["processes"])
}

func TestNew_DebugFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local) }
	t.Cleanup(func() { now = time.Now })

	var buf bytes.Buffer
	log, closeLog, err := New(types.LoggingConfig{Level: "error", Format: "console", Dir: dir}, &buf)
	require.NoError(t, err)
	log.Debug("copy attempt", zap.Int("attempt", 1))
	closeLog()

	data, err := os.ReadFile(filepath.Join(dir, "debug_20260102_030405.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "copy attempt")
	assert.Empty(t, buf.String(), "console stays at the configured level")
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(types.LoggingConfig{Level: "loud", Format: "console"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(types.LoggingConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
