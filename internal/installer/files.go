package installer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/project"
)

func fsError(op, path string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, op+" "+path).
		WithContext("path", path).
		Build()
}

// itemAs narrows item to the handler's concrete type.
func itemAs[T plugin.Item](item plugin.Item) (T, error) {
	v, ok := item.(T)
	if !ok {
		var zero T
		return zero, ferrors.PluginError(fmt.Sprintf("handler for %s received %T", zero.Kind(), item)).Build()
	}
	return v, nil
}

// placement is one install call's writes. It remembers the records the call
// added so a failure part way through can put them back.
type placement struct {
	t        Target
	pluginID string
	added    []string
}

// place writes data to dst and records what was there before.
func place(ctx context.Context, t Target, pluginID, dst string, data []byte) error {
	p := &placement{t: t, pluginID: pluginID}
	return p.finish(ctx, p.write(ctx, dst, data))
}

// placeTree copies the file or directory src to dst. Either every file is
// placed or, on error, none of them is left behind.
func placeTree(ctx context.Context, t Target, pluginID, src, dst string) error {
	p := &placement{t: t, pluginID: pluginID}
	return p.finish(ctx, p.copyTree(ctx, src, dst))
}

func (p *placement) copyTree(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fsError("stat", src, err)
	}
	if !info.IsDir() {
		// #nosec G304 - src is inside the plugin directory
		data, err := os.ReadFile(src)
		if err != nil {
			return fsError("read", src, err)
		}
		return p.write(ctx, dst, data)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fsError("walk", path, err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fsError("resolve", path, err)
		}
		// #nosec G304 - path is inside the plugin directory
		data, err := os.ReadFile(path)
		if err != nil {
			return fsError("read", path, err)
		}
		return p.write(ctx, filepath.Join(dst, rel), data)
	})
}

func (p *placement) write(ctx context.Context, dst string, data []byte) error {
	if p.t.Backups != nil {
		// #nosec G304 - dst is inside the project root
		prev, err := os.ReadFile(dst)
		switch {
		case err == nil:
			key := p.t.key(dst)
			if err := p.record(key, func() error { return p.t.Backups.Save(ctx, p.pluginID, key, prev) }); err != nil {
				return fsError("back up", dst, err)
			}
		case os.IsNotExist(err):
			if err := p.recordDirs(filepath.Dir(dst)); err != nil {
				return fsError("record directories for", dst, err)
			}
			key := p.t.key(dst)
			if err := p.record(key, func() error { return p.t.Backups.MarkCreated(p.pluginID, key) }); err != nil {
				return fsError("record", dst, err)
			}
		default:
			return fsError("read", dst, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fsError("create directory for", dst, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fsError("write", dst, err)
	}
	return nil
}

// record runs save unless the plugin already has a record at key; the first
// record for a path is the pre-install state.
func (p *placement) record(key string, save func() error) error {
	has, err := p.t.Backups.Has(p.pluginID, key)
	if err != nil || has {
		return err
	}
	if err := save(); err != nil {
		return err
	}
	p.added = append(p.added, key)
	return nil
}

// recordDirs marks every missing directory from dir up to the project root
// as created, outermost first.
func (p *placement) recordDirs(dir string) error {
	root := filepath.Clean(p.t.Root)
	var missing []string
	for dir = filepath.Clean(dir); strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if _, err := os.Stat(dir); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return err
		}
		missing = append(missing, dir)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		key := dirKey(p.t, missing[i])
		if err := p.record(key, func() error { return p.t.Backups.MarkCreated(p.pluginID, key) }); err != nil {
			return err
		}
	}
	return nil
}

// finish reverts the call's records when err is set and returns err.
func (p *placement) finish(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	for i := len(p.added) - 1; i >= 0; i-- {
		if rerr := restore(ctx, p.t, p.pluginID, p.added[i]); rerr != nil {
			slog.Error("Failed to revert partial install",
				logfields.PluginID(p.pluginID),
				logfields.Path(p.added[i]),
				logfields.Error(rerr))
		}
	}
	return err
}

// dirKey indexes the record that a directory was created. The trailing slash
// keeps it apart from file keys and sorts it before everything inside it.
func dirKey(t Target, dir string) string {
	return t.key(dir) + "/"
}

func isDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}

// restore applies and forgets the record at key. Created directories are only
// removed while empty.
func restore(ctx context.Context, t Target, pluginID, key string) error {
	b, ok, err := t.Backups.Take(ctx, pluginID, key)
	if err != nil {
		return fsError("restore", key, err)
	}
	if !ok {
		return nil
	}
	p := t.fromKey(key)
	switch {
	case isDirKey(key):
		_ = os.Remove(p) // only succeeds when empty
	case b.Created:
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fsError("remove", p, err)
		}
	default:
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fsError("create directory for", p, err)
		}
		if err := os.WriteFile(p, b.Data, 0o644); err != nil {
			return fsError("restore", p, err)
		}
	}
	return nil
}

// unplace reverses place and placeTree for dst: created files are removed,
// replaced files get their recorded content back, and directories the plugin
// created are pruned once empty. Without records dst is removed outright.
func unplace(ctx context.Context, t Target, pluginID, dst, boundary string) error {
	var keys []string
	if t.Backups != nil {
		var err error
		if keys, err = t.Backups.Under(pluginID, t.key(dst)); err != nil {
			return fsError("look up records for", dst, err)
		}
	}

	if len(keys) == 0 {
		if err := os.RemoveAll(dst); err != nil {
			return fsError("remove", dst, err)
		}
		return pruneUp(ctx, t, pluginID, filepath.Dir(dst), boundary)
	}

	// Keys come deepest first, so files go before the directories holding them.
	for _, k := range keys {
		p := t.fromKey(k)
		if isDirKey(k) {
			if err := pruneUp(ctx, t, pluginID, p, boundary); err != nil {
				return err
			}
			continue
		}
		if err := restore(ctx, t, pluginID, k); err != nil {
			return err
		}
		if err := pruneUp(ctx, t, pluginID, filepath.Dir(p), boundary); err != nil {
			return err
		}
	}
	return nil
}

// pruneUp removes dir and its parents while they are empty. With backups only
// directories recorded as created by pluginID go, up to the project root;
// without them pruning stops below boundary.
func pruneUp(ctx context.Context, t Target, pluginID, dir, boundary string) error {
	limit := boundary
	if t.Backups != nil {
		limit = t.Root
	}
	limit = filepath.Clean(limit)
	for dir = filepath.Clean(dir); strings.HasPrefix(dir, limit+string(filepath.Separator)); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil
		}
		if len(entries) > 0 {
			return nil
		}
		if t.Backups != nil {
			_, ok, err := t.Backups.Take(ctx, pluginID, dirKey(t, dir))
			if err != nil {
				return fsError("look up record for", dir, err)
			}
			if !ok {
				return nil
			}
		}
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return nil
		}
	}
	return nil
}

// sectionKey indexes the record that an install created a top-level
// package.json object.
func sectionKey(section string) string {
	return project.FileName + "#" + section
}

// markSection records that pluginID is about to create section.
func markSection(t Target, pluginID, section string) error {
	if t.Backups == nil || t.Project.Has(section) {
		return nil
	}
	if err := t.Backups.MarkCreated(pluginID, sectionKey(section)); err != nil {
		return fsError("record section", section, err)
	}
	return nil
}

// releaseSection drops section again if pluginID created it and it is empty.
// While the section still has members the record is kept for a later call.
func releaseSection(ctx context.Context, t Target, pluginID, section string) error {
	if t.Backups == nil || !t.Project.Empty(section) {
		return nil
	}
	b, ok, err := t.Backups.Take(ctx, pluginID, sectionKey(section))
	if err != nil {
		return fsError("look up section", section, err)
	}
	if !ok || !b.Created {
		return nil
	}
	if err := t.Project.DropEmpty(section); err != nil {
		return fsError("drop section from", t.Project.Path(), err)
	}
	return nil
}
