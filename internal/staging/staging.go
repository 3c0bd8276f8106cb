// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package staging owns the temporary directory that holds a device's data
// while the device is reformatted. At most one area exists at a time.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

// Manager allocates and releases the staging area.
type Manager struct {
	root   string
	prefix string
	log    *zap.Logger

	mu   sync.Mutex
	path string
}

// New returns a Manager rooted at cfg.Root, or <systemDrive>/Temp when
// cfg.Root is empty.
func New(cfg types.StagingConfig, systemDrive string, log *zap.Logger) *Manager {
	root := cfg.Root
	if root == "" {
		root = filepath.Join(systemDrive, "Temp")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = types.DefaultConfig().Staging.Prefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{root: root, prefix: prefix, log: log}
}

// Root returns the directory staging areas are created in.
func (m *Manager) Root() string { return m.root }

// Allocate creates a fresh, uniquely named directory for device's backup.
// It fails if an area is already allocated or the root cannot be created.
func (m *Manager) Allocate(device string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path != "" {
		return "", types.Errorf(types.KindStagingAllocationFailed, device,
			"a staging area is already in use at %s", m.path)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", types.NewError(types.KindStagingAllocationFailed, device,
			fmt.Sprintf("could not create staging root %s", m.root), err)
	}
	dir, err := os.MkdirTemp(m.root, m.prefix+types.Letter(device)+"_")
	if err != nil {
		return "", types.NewError(types.KindStagingAllocationFailed, device,
			fmt.Sprintf("could not create staging directory in %s", m.root), err)
	}

	m.path = dir
	m.log.Info("staging area allocated", zap.String("device", device), zap.String("path", dir))
	return dir, nil
}

// Release removes the active staging area and everything in it. It is safe
// to call when nothing is allocated and more than once. Removal failures
// are logged, never returned.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return
	}
	if err := os.RemoveAll(m.path); err != nil {
		m.log.Warn("staging cleanup failed", zap.String("path", m.path), zap.Error(err))
	} else {
		m.log.Info("staging area released", zap.String("path", m.path))
	}
	m.path = ""
}

// Path returns the active staging directory, or "" when none is allocated.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}
