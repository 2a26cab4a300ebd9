package installer

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// DefaultFrameworkSpec is registered when a framework declares no version.
const DefaultFrameworkSpec = "*"

type frameworkHandler struct{}

// Install registers the framework as a project dependency. Custom frameworks
// are first copied to <root>/Plugins/<pluginID>/<src> and referenced by a
// file: spec.
func (frameworkHandler) Install(ctx context.Context, t Target, item plugin.Item, pluginDir, pluginID string) error {
	f, err := itemAs[plugin.Framework](item)
	if err != nil {
		return err
	}
	if t.Project == nil {
		slog.Debug("No project handle, skipping framework", logfields.PluginID(pluginID), logfields.Item(f.Describe()))
		return nil
	}

	if f.Custom {
		src := filepath.Join(pluginDir, filepath.FromSlash(f.Src))
		if err := placeTree(ctx, t, pluginID, src, customTarget(t, f, pluginID)); err != nil {
			return err
		}
	}
	spec := frameworkSpec(t, f, pluginID)

	name := FrameworkName(f)
	if err := markSection(t, pluginID, dependenciesSection); err != nil {
		return err
	}
	if t.Backups != nil {
		key := dependencyKey(name)
		if prev, ok := t.Project.Dependency(name); ok {
			err = t.Backups.Save(ctx, pluginID, key, []byte(prev))
		} else {
			err = t.Backups.MarkCreated(pluginID, key)
		}
		if err != nil {
			return fsError("record dependency", name, err)
		}
	}
	if err := t.Project.SetDependency(name, spec); err != nil {
		return fsError("register dependency in", t.Project.Path(), err)
	}
	return nil
}

// Uninstall unregisters the dependency, restoring a spec it replaced, and
// removes a custom framework's copy. When another plugin registered the same
// dependency afterwards, the dependency stays and that plugin inherits the
// record.
func (frameworkHandler) Uninstall(ctx context.Context, t Target, item plugin.Item, pluginID string) error {
	f, err := itemAs[plugin.Framework](item)
	if err != nil {
		return err
	}
	if t.Project == nil {
		return nil
	}

	name := FrameworkName(f)
	heir, err := dependencyHeir(ctx, t, pluginID, name, frameworkSpec(t, f, pluginID))
	if err != nil {
		return fsError("look up dependency", name, err)
	}
	if heir != "" {
		slog.Debug("Dependency still declared by another plugin",
			logfields.PluginID(pluginID),
			logfields.Item(name),
			slog.String("heir", heir))
		for _, key := range []string{dependencyKey(name), sectionKey(dependenciesSection)} {
			if err := t.Backups.Handoff(ctx, pluginID, heir, key); err != nil {
				return fsError("hand off", key, err)
			}
		}
		if f.Custom {
			return unplace(ctx, t, pluginID, customTarget(t, f, pluginID), t.Root)
		}
		return nil
	}

	restored := false
	if t.Backups != nil {
		b, ok, err := t.Backups.Take(ctx, pluginID, dependencyKey(name))
		if err != nil {
			return fsError("look up dependency", name, err)
		}
		if ok && !b.Created {
			if err := t.Project.SetDependency(name, string(b.Data)); err != nil {
				return fsError("restore dependency in", t.Project.Path(), err)
			}
			restored = true
		}
	}
	if !restored {
		if err := t.Project.RemoveDependency(name); err != nil {
			return fsError("unregister dependency in", t.Project.Path(), err)
		}
	}
	if err := releaseSection(ctx, t, pluginID, dependenciesSection); err != nil {
		return err
	}

	if f.Custom {
		return unplace(ctx, t, pluginID, customTarget(t, f, pluginID), t.Root)
	}
	return nil
}

// FrameworkName is the dependency name a framework is registered under.
func FrameworkName(f plugin.Framework) string {
	if f.Custom {
		return path.Base(filepath.ToSlash(f.Src))
	}
	return f.Src
}

// frameworkSpec is the dependency spec Install registers for f.
func frameworkSpec(t Target, f plugin.Framework, pluginID string) string {
	if f.Custom {
		return "file:" + t.key(customTarget(t, f, pluginID))
	}
	if f.Spec == "" {
		return DefaultFrameworkSpec
	}
	return f.Spec
}

// dependencyHeir finds the plugin that registered the dependency on top of
// pluginID, recognised by its record holding the spec pluginID registered.
// That plugin takes over pluginID's record. "" means pluginID's own record
// is the one to restore.
func dependencyHeir(ctx context.Context, t Target, pluginID, name, spec string) (string, error) {
	if t.Backups == nil {
		return "", nil
	}
	key := dependencyKey(name)
	holders, err := t.Backups.Holders(pluginID, key)
	if err != nil || len(holders) == 0 {
		return "", err
	}
	for _, h := range holders {
		b, ok, err := t.Backups.Peek(ctx, h, key)
		if err != nil {
			return "", err
		}
		if ok && !b.Created && string(b.Data) == spec {
			return h, nil
		}
	}
	return "", nil
}

func customTarget(t Target, f plugin.Framework, pluginID string) string {
	return filepath.Join(t.PluginDir(pluginID), filepath.FromSlash(f.Src))
}

const dependenciesSection = "dependencies"

func dependencyKey(name string) string {
	return sectionKey(dependenciesSection) + "/" + name
}
