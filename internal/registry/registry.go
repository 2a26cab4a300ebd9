// Package registry maintains the record of installed js-modules and plugin
// metadata for a platform project.
//
// State is a plain value. AddModules and RemoveModules are pure transforms
// that return a new State; Store owns the on-disk file and is its only writer.
package registry

import (
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/util/sets"
)

// Entry is one installed js-module as the runtime sees it.
type Entry struct {
	File     string   `json:"file"`
	ID       string   `json:"id"`
	PluginID string   `json:"pluginId"`
	Clobbers []string `json:"clobbers,omitempty"`
	Merges   []string `json:"merges,omitempty"`
	Runs     bool     `json:"runs,omitempty"`
}

// State is the full registry content.
type State struct {
	Modules  []Entry
	Metadata map[string]string
	// Installed records the variables each plugin was installed with.
	Installed map[string]map[string]string

	// extra keeps top-level fields this package does not manage.
	extra map[string][]byte
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Modules:   make([]Entry, 0, len(s.Modules)),
		Metadata:  make(map[string]string, len(s.Metadata)),
		Installed: make(map[string]map[string]string, len(s.Installed)),
		extra:     make(map[string][]byte, len(s.extra)),
	}
	for _, e := range s.Modules {
		out.Modules = append(out.Modules, e.clone())
	}
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	for id, vars := range s.Installed {
		cp := make(map[string]string, len(vars))
		for k, v := range vars {
			cp[k] = v
		}
		out.Installed[id] = cp
	}
	for k, v := range s.extra {
		out.extra[k] = append([]byte(nil), v...)
	}
	return out
}

func (e Entry) clone() Entry {
	e.Clobbers = append([]string(nil), e.Clobbers...)
	e.Merges = append([]string(nil), e.Merges...)
	if len(e.Clobbers) == 0 {
		e.Clobbers = nil
	}
	if len(e.Merges) == 0 {
		e.Merges = nil
	}
	return e
}

// AddModules appends the entries whose File is not yet present, keeping the
// existing order, and records version as the plugin's metadata.
func AddModules(s State, pluginID, version string, entries []Entry) State {
	out := s.Clone()
	seen := sets.New[string]()
	for _, e := range out.Modules {
		seen.Add(e.File)
	}
	for _, e := range entries {
		if seen.Has(e.File) {
			continue
		}
		seen.Add(e.File)
		out.Modules = append(out.Modules, e.clone())
	}
	out.Metadata[pluginID] = version
	return out
}

// RemoveModules drops every entry whose File is listed in files and deletes
// the plugin's metadata. Entries not listed are left untouched even when they
// carry pluginID.
func RemoveModules(s State, pluginID string, files []string) State {
	out := s.Clone()
	drop := sets.New(files...)
	kept := out.Modules[:0]
	for _, e := range out.Modules {
		if drop.Has(e.File) {
			continue
		}
		kept = append(kept, e)
	}
	out.Modules = kept
	delete(out.Metadata, pluginID)
	return out
}

// SetInstalled records the variables a plugin was installed with.
func SetInstalled(s State, pluginID string, vars map[string]string) State {
	out := s.Clone()
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	out.Installed[pluginID] = cp
	return out
}

// ClearInstalled forgets a plugin's install variables.
func ClearInstalled(s State, pluginID string) State {
	out := s.Clone()
	delete(out.Installed, pluginID)
	return out
}

// EntriesFor builds the registry entries for the descriptor's js-modules on platform.
func EntriesFor(d plugin.Descriptor, platform string) []Entry {
	mods := d.JSModules(platform)
	out := make([]Entry, 0, len(mods))
	for _, m := range mods {
		e := Entry{
			File:     m.RegistryFile(d.ID()),
			ID:       m.ModuleName(d.ID()),
			PluginID: d.ID(),
			Runs:     m.Runs,
		}
		if len(m.Clobbers) > 0 {
			e.Clobbers = append([]string(nil), m.Clobbers...)
		}
		if len(m.Merges) > 0 {
			e.Merges = append([]string(nil), m.Merges...)
		}
		out = append(out, e)
	}
	return out
}

// FilesFor returns the registry file paths derived from the descriptor's
// current js-module list.
func FilesFor(d plugin.Descriptor, platform string) []string {
	mods := d.JSModules(platform)
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.RegistryFile(d.ID()))
	}
	return out
}

// ByPlugin groups the module entries by owning plugin id, preserving order.
func (s State) ByPlugin() map[string][]Entry {
	out := make(map[string][]Entry)
	for _, e := range s.Modules {
		out[e.PluginID] = append(out[e.PluginID], e)
	}
	return out
}
