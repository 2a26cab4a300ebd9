// Package munge tracks the configuration fragments installed plugins merge
// into platform configuration files. Each fragment is reference counted so
// two plugins contributing the same change keep it until both are removed.
package munge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// FileName is the tracker's file under the platform root.
const FileName = "config_munge.json"

// Fragment is one tracked change with its reference count.
type Fragment struct {
	XML   string `json:"xml"`
	Count int    `json:"count"`
}

// State maps target file -> parent selector -> fragments.
type State struct {
	Files map[string]map[string][]Fragment `json:"files"`
}

// Tracker is the persisted change set for one platform project.
type Tracker struct {
	path  string
	state State
	dirty bool
}

// Load reads the tracker at path. A missing file yields an empty tracker.
func Load(path string) (*Tracker, error) {
	t := &Tracker{path: path, state: State{Files: map[string]map[string][]Fragment{}}}

	// #nosec G304 - path is derived from the configured project root
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &t.state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if t.state.Files == nil {
		t.state.Files = map[string]map[string][]Fragment{}
	}
	return t, nil
}

// AddPluginChanges records the descriptor's config changes for platform,
// substituting $NAME references from vars.
func (t *Tracker) AddPluginChanges(d plugin.Descriptor, platform string, vars map[string]string) *Tracker {
	for _, c := range d.ConfigChanges(platform) {
		t.adjust(c.Target, c.Parent, Substitute(c.XML, vars), 1)
	}
	return t
}

// RemovePluginChanges releases the descriptor's config changes. vars must be
// the variables the plugin was installed with so the fragments match.
func (t *Tracker) RemovePluginChanges(d plugin.Descriptor, platform string, vars map[string]string) *Tracker {
	for _, c := range d.ConfigChanges(platform) {
		t.adjust(c.Target, c.Parent, Substitute(c.XML, vars), -1)
	}
	return t
}

// Count returns the reference count for a fragment.
func (t *Tracker) Count(target, parent, xml string) int {
	for _, f := range t.state.Files[target][parent] {
		if f.XML == xml {
			return f.Count
		}
	}
	return 0
}

// Targets lists the files with tracked fragments.
func (t *Tracker) Targets() []string {
	out := make([]string, 0, len(t.state.Files))
	for k := range t.state.Files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SaveAll writes the tracker when it has changed.
func (t *Tracker) SaveAll() error {
	if !t.dirty {
		return nil
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config changes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create %s directory: %w", FileName, err)
	}

	tempPath := t.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temporary %s: %w", FileName, err)
	}
	if err := os.Rename(tempPath, t.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace %s: %w", FileName, err)
	}
	t.dirty = false
	return nil
}

func (t *Tracker) adjust(target, parent, xml string, delta int) {
	parents := t.state.Files[target]
	frags := parents[parent]

	idx := -1
	for i, f := range frags {
		if f.XML == xml {
			idx = i
			break
		}
	}

	switch {
	case idx < 0 && delta > 0:
		frags = append(frags, Fragment{XML: xml, Count: delta})
	case idx < 0:
		return
	default:
		frags[idx].Count += delta
		if frags[idx].Count <= 0 {
			frags = append(frags[:idx], frags[idx+1:]...)
		}
	}
	t.dirty = true

	if parents == nil {
		parents = map[string][]Fragment{}
		t.state.Files[target] = parents
	}
	if len(frags) == 0 {
		delete(parents, parent)
		if len(parents) == 0 {
			delete(t.state.Files, target)
		}
		return
	}
	parents[parent] = frags
}

// Substitute replaces $NAME references with values from vars. Longer names
// are replaced first so $API_KEY_ID is not clobbered by $API_KEY.
func Substitute(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "$") {
		return s
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, 2*len(names))
	for _, k := range names {
		pairs = append(pairs, "$"+k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
