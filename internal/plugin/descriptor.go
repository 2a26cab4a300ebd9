package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Descriptor is the read-only view of a plugin the installer consumes.
type Descriptor interface {
	ID() string
	Version() string
	Dir() string
	FilesAndFrameworks(platform string) []Item
	Assets(platform string) []Asset
	JSModules(platform string) []JSModule
	ConfigChanges(platform string) []ConfigChange
}

// Section groups the items declared at one level of a descriptor. Files keeps
// source-file, framework and unrecognised entries in declaration order.
type Section struct {
	Files         []Item
	Assets        []Asset
	JSModules     []JSModule
	ConfigChanges []ConfigChange
}

// Info is the in-memory Descriptor produced by the descriptor reader.
type Info struct {
	PluginID      string
	PluginVersion string
	Name          string
	Directory     string

	// Common holds items declared outside any platform section.
	Common Section
	// Platforms holds per-platform sections keyed by platform name.
	Platforms map[string]Section
}

var _ Descriptor = (*Info)(nil)

func (i *Info) ID() string      { return i.PluginID }
func (i *Info) Version() string { return i.PluginVersion }
func (i *Info) Dir() string     { return i.Directory }

// FilesAndFrameworks returns the platform's native items. Only platform
// sections declare native items.
func (i *Info) FilesAndFrameworks(platform string) []Item {
	return append([]Item(nil), i.Platforms[platform].Files...)
}

// Assets returns common assets followed by the platform's assets.
func (i *Info) Assets(platform string) []Asset {
	out := append([]Asset(nil), i.Common.Assets...)
	return append(out, i.Platforms[platform].Assets...)
}

// JSModules returns common modules followed by the platform's modules.
func (i *Info) JSModules(platform string) []JSModule {
	out := append([]JSModule(nil), i.Common.JSModules...)
	return append(out, i.Platforms[platform].JSModules...)
}

// ConfigChanges returns common changes followed by the platform's changes.
func (i *Info) ConfigChanges(platform string) []ConfigChange {
	out := append([]ConfigChange(nil), i.Common.ConfigChanges...)
	return append(out, i.Platforms[platform].ConfigChanges...)
}

var (
	// ErrNoDescriptor is returned when an operation is given no descriptor.
	ErrNoDescriptor = errors.New("plugin descriptor is required")

	// ErrInvalidDescriptor is wrapped by every Validate failure.
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")
)

// Validate checks the fields the installer relies on.
func (i *Info) Validate() error {
	if strings.TrimSpace(i.PluginID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDescriptor)
	}
	if strings.ContainsAny(i.PluginID, `/\`) || i.PluginID == "." || i.PluginID == ".." {
		return fmt.Errorf("%w: id %q is not a valid directory name", ErrInvalidDescriptor, i.PluginID)
	}
	if i.Directory == "" {
		return fmt.Errorf("%w: %s: missing plugin directory", ErrInvalidDescriptor, i.PluginID)
	}
	sections := []Section{i.Common}
	for _, s := range i.Platforms {
		sections = append(sections, s)
	}
	for _, s := range sections {
		for _, m := range s.JSModules {
			if m.Src == "" {
				return fmt.Errorf("%w: %s: js-module without src", ErrInvalidDescriptor, i.PluginID)
			}
		}
		for _, a := range s.Assets {
			if a.Src == "" || a.Target == "" {
				return fmt.Errorf("%w: %s: asset requires src and target", ErrInvalidDescriptor, i.PluginID)
			}
		}
	}
	return nil
}
