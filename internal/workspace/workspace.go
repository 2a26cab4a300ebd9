package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// Manager owns one workspace directory.
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewScratch returns a manager for a unique temporary workspace under baseDir
// (os.TempDir when empty).
func NewScratch(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewCache returns a manager for the persistent workspace at dir.
func NewCache(dir string) *Manager {
	return &Manager{baseDir: filepath.Dir(dir), dir: dir, persistent: true}
}

// Create makes the workspace directory. Calling it on an existing cache is a
// no-op.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create cache workspace: %w", err)
		}
		slog.Debug("Using cache workspace", logfields.Path(m.dir))
		return nil
	}
	if m.dir != "" {
		return nil
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base: %w", err)
	}
	dir, err := os.MkdirTemp(m.baseDir, "plugsmith-*")
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	m.dir = dir
	slog.Debug("Created scratch workspace", logfields.Path(dir))
	return nil
}

// Path returns the workspace directory, empty before Create.
func (m *Manager) Path() string { return m.dir }

// Persistent reports whether Cleanup keeps the directory.
func (m *Manager) Persistent() bool { return m.persistent }

// Cleanup removes a scratch workspace. Cache workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" || m.persistent {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to clean up workspace: %w", err)
	}
	slog.Debug("Removed scratch workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// Subdir returns the path of name inside the workspace without creating it.
// Names that would escape the workspace are rejected.
func (m *Manager) Subdir(name string) (string, error) {
	if m.dir == "" {
		return "", errors.New("workspace not created")
	}
	clean := filepath.Clean(name)
	if name == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid workspace entry %q", name)
	}
	return filepath.Join(m.dir, clean), nil
}
