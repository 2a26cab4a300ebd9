package installer

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/project"
	"git.home.luguber.info/inful/plugsmith/internal/storage"
)

// PluginsDirName is the directory under the project root holding per-plugin
// copies such as custom frameworks.
const PluginsDirName = "Plugins"

// Target is the project an item is applied to.
type Target struct {
	// Root is the platform project root.
	Root string
	// Web is the web-asset root receiving modules and assets.
	Web string

	Variables       map[string]string
	PlatformVersion string

	// Project is the package.json handle; nil disables framework and hook
	// registration.
	Project *project.Handle
	// Backups records overwritten content; nil means overwritten files are
	// not restored on uninstall.
	Backups *storage.Backups
}

// PluginDir returns the per-plugin storage directory under the project root.
func (t Target) PluginDir(pluginID string) string {
	return filepath.Join(t.Root, PluginsDirName, pluginID)
}

// key returns the project-relative, slash separated form of p used to index
// backups.
func (t Target) key(p string) string {
	rel, err := filepath.Rel(t.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// fromKey reverses key.
func (t Target) fromKey(k string) string {
	p := filepath.FromSlash(k)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(t.Root, p)
}
