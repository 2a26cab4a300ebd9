package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Backups records, per plugin and project-relative path, what an install
// replaced. A path maps either to the hash of its prior content or to the
// empty string when the install created it.
type Backups struct {
	store Store
}

// Backup is the recorded prior state of one path.
type Backup struct {
	// Created is true when the path did not exist before the install.
	Created bool
	Data    []byte
}

// NewBackups wraps store.
func NewBackups(store Store) *Backups {
	return &Backups{store: store}
}

// Save records data as the prior content of relPath. The first record for a
// path wins: a repeated install must not replace the original content with
// the plugin's own copy.
func (b *Backups) Save(ctx context.Context, pluginID, relPath string, data []byte) error {
	key := filepath.ToSlash(relPath)
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return err
	}
	if _, ok := refs[key]; ok {
		return nil
	}

	hash, err := b.store.Put(ctx, data)
	if err != nil {
		return fmt.Errorf("store backup of %s: %w", key, err)
	}
	refs[key] = hash
	if err := b.store.SetRefs(pluginID, refs); err != nil {
		_ = b.store.Release(ctx, hash)
		return fmt.Errorf("index backup of %s: %w", key, err)
	}
	return nil
}

// MarkCreated records that relPath did not exist before the install.
func (b *Backups) MarkCreated(pluginID, relPath string) error {
	key := filepath.ToSlash(relPath)
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return err
	}
	if _, ok := refs[key]; ok {
		return nil
	}
	refs[key] = ""
	if err := b.store.SetRefs(pluginID, refs); err != nil {
		return fmt.Errorf("index %s: %w", key, err)
	}
	return nil
}

// Has reports whether relPath has a record.
func (b *Backups) Has(pluginID, relPath string) (bool, error) {
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return false, err
	}
	_, ok := refs[filepath.ToSlash(relPath)]
	return ok, nil
}

// Peek returns the record for relPath without forgetting it.
func (b *Backups) Peek(ctx context.Context, pluginID, relPath string) (Backup, bool, error) {
	key := filepath.ToSlash(relPath)
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return Backup{}, false, err
	}
	hash, ok := refs[key]
	if !ok {
		return Backup{}, false, nil
	}
	if hash == "" {
		return Backup{Created: true}, true, nil
	}
	data, err := b.store.Get(ctx, hash)
	if err != nil {
		return Backup{}, false, fmt.Errorf("read backup of %s: %w", key, err)
	}
	return Backup{Data: data}, true, nil
}

// Holders lists the plugins other than pluginID with a record for relPath.
func (b *Backups) Holders(pluginID, relPath string) ([]string, error) {
	key := filepath.ToSlash(relPath)
	ids, err := b.store.Plugins()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		if id == pluginID {
			continue
		}
		refs, err := b.store.Refs(id)
		if err != nil {
			return nil, err
		}
		if _, ok := refs[key]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Handoff moves from's record for relPath to to, replacing any record to
// already had. When from goes away while to still uses the path, to's own
// removal then restores what was there before from.
func (b *Backups) Handoff(ctx context.Context, from, to, relPath string) error {
	key := filepath.ToSlash(relPath)
	fromRefs, err := b.store.Refs(from)
	if err != nil {
		return err
	}
	hash, ok := fromRefs[key]
	if !ok {
		return nil
	}
	toRefs, err := b.store.Refs(to)
	if err != nil {
		return err
	}
	old, had := toRefs[key]
	toRefs[key] = hash
	if err := b.store.SetRefs(to, toRefs); err != nil {
		return fmt.Errorf("index handoff of %s: %w", key, err)
	}
	delete(fromRefs, key)
	if err := b.store.SetRefs(from, fromRefs); err != nil {
		return fmt.Errorf("index handoff of %s: %w", key, err)
	}
	if had && old != "" {
		if err := b.store.Release(ctx, old); err != nil && !IsNotFound(err) {
			return fmt.Errorf("release backup of %s: %w", key, err)
		}
	}
	return nil
}

// Take returns the record for relPath and forgets it. The second result is
// false when nothing was recorded.
func (b *Backups) Take(ctx context.Context, pluginID, relPath string) (Backup, bool, error) {
	key := filepath.ToSlash(relPath)
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return Backup{}, false, err
	}
	hash, ok := refs[key]
	if !ok {
		return Backup{}, false, nil
	}

	var out Backup
	if hash == "" {
		out.Created = true
	} else {
		data, err := b.store.Get(ctx, hash)
		if err != nil {
			return Backup{}, false, fmt.Errorf("read backup of %s: %w", key, err)
		}
		out.Data = data
	}

	delete(refs, key)
	if err := b.store.SetRefs(pluginID, refs); err != nil {
		return Backup{}, false, fmt.Errorf("index backup of %s: %w", key, err)
	}
	if hash != "" {
		if err := b.store.Release(ctx, hash); err != nil && !IsNotFound(err) {
			return Backup{}, false, fmt.Errorf("release backup of %s: %w", key, err)
		}
	}
	return out, true, nil
}

// Under lists recorded paths equal to prefix or below it, deepest first.
func (b *Backups) Under(pluginID, prefix string) ([]string, error) {
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSuffix(filepath.ToSlash(prefix), "/")
	var out []string
	for k := range refs {
		if k == prefix || strings.HasPrefix(k, prefix+"/") {
			out = append(out, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Paths lists every recorded path for a plugin.
func (b *Backups) Paths(pluginID string) ([]string, error) {
	refs, err := b.store.Refs(pluginID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(refs))
	for k := range refs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
