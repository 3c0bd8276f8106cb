// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger used by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/fsconvert/pkg/types"
)

// now is replaced in tests.
var now = time.Now

// FileName returns the debug log name for t, e.g. debug_20260314_092653.log.
func FileName(t time.Time) string {
	return "debug_" + t.Format("20060102_150405") + ".log"
}

// New returns a logger writing cfg.Level and above to w in cfg.Format.
// When cfg.Dir is set, every message at debug and above is also written
// as JSON to a new timestamped file there. The returned func flushes the
// logger and closes the file.
func New(cfg types.LoggingConfig, w io.Writer) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(w), level),
	}

	var file *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		path := filepath.Join(cfg.Dir, FileName(now()))
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(file), zapcore.DebugLevel))
	}

	log := zap.New(zapcore.NewTee(cores...))
	closer := func() {
		_ = log.Sync()
		if file != nil {
			file.Close()
		}
	}
	if file != nil {
		log.Debug("debug log opened", zap.String("path", file.Name()))
	}
	return log, closer, nil
}
