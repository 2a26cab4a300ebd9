package installer

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// DefaultSourceDir receives source files that declare no target directory.
const DefaultSourceDir = "src"

type sourceFileHandler struct{}

// Install copies the source into <root>/<targetDir>/<basename> and registers
// its build hooks as package scripts named "<hook>:<pluginID>".
func (sourceFileHandler) Install(ctx context.Context, t Target, item plugin.Item, pluginDir, pluginID string) error {
	s, err := itemAs[plugin.SourceFile](item)
	if err != nil {
		return err
	}
	src := filepath.Join(pluginDir, filepath.FromSlash(s.Src))
	if err := placeTree(ctx, t, pluginID, src, sourceTarget(t, s)); err != nil {
		return err
	}

	if len(s.Hooks) == 0 {
		return nil
	}
	if t.Project == nil {
		slog.Debug("No project handle, skipping build hooks", logfields.PluginID(pluginID), logfields.Item(s.Describe()))
		return nil
	}
	if err := markSection(t, pluginID, scriptsSection); err != nil {
		return err
	}
	for _, hook := range sortedKeys(s.Hooks) {
		if err := t.Project.SetScript(HookScriptName(hook, pluginID), s.Hooks[hook]); err != nil {
			return fsError("register hook in", t.Project.Path(), err)
		}
	}
	return nil
}

// Uninstall removes the copied source and its hook scripts.
func (sourceFileHandler) Uninstall(ctx context.Context, t Target, item plugin.Item, pluginID string) error {
	s, err := itemAs[plugin.SourceFile](item)
	if err != nil {
		return err
	}
	if t.Project != nil {
		for _, hook := range sortedKeys(s.Hooks) {
			if err := t.Project.RemoveScript(HookScriptName(hook, pluginID)); err != nil {
				return fsError("unregister hook in", t.Project.Path(), err)
			}
		}
		if len(s.Hooks) > 0 {
			if err := releaseSection(ctx, t, pluginID, scriptsSection); err != nil {
				return err
			}
		}
	}
	return unplace(ctx, t, pluginID, sourceTarget(t, s), t.Root)
}

const scriptsSection = "scripts"

// HookScriptName is the package script a plugin's build hook is stored under.
func HookScriptName(hook, pluginID string) string {
	return hook + ":" + pluginID
}

func sourceTarget(t Target, s plugin.SourceFile) string {
	dir := s.TargetDir
	if dir == "" {
		dir = DefaultSourceDir
	}
	return filepath.Join(t.Root, filepath.FromSlash(dir), filepath.Base(filepath.FromSlash(s.Src)))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
