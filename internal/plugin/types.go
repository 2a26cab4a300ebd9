package plugin

import (
	"path"
	"strings"
)

// ItemKind identifies the category of an installable item.
type ItemKind string

const (
	// KindSourceFile is a native source file copied into the project.
	KindSourceFile ItemKind = "source-file"

	// KindFramework is a native dependency registered with the project handle.
	KindFramework ItemKind = "framework"

	// KindAsset is a static file or directory copied under the web root.
	KindAsset ItemKind = "asset"

	// KindJSModule is a script wrapped as a runtime module under the web root.
	KindJSModule ItemKind = "js-module"
)

// IsValid returns true if the kind is one of the four installable kinds.
func (k ItemKind) IsValid() bool {
	switch k {
	case KindSourceFile, KindFramework, KindAsset, KindJSModule:
		return true
	default:
		return false
	}
}

// String returns the string representation of the item kind.
func (k ItemKind) String() string {
	return string(k)
}

// ParseItemKind maps a descriptor tag to its kind. The second result is false
// for tags outside the closed set; the kind is still returned so callers can
// report it.
func ParseItemKind(tag string) (ItemKind, bool) {
	k := ItemKind(strings.TrimSpace(tag))
	return k, k.IsValid()
}

// Item is one installable unit contributed by a plugin.
type Item interface {
	Kind() ItemKind
	Describe() string
}

// SourceFile is a native source file. Hooks maps a native build hook name to
// the command the project should run for it.
type SourceFile struct {
	Src       string            `json:"src"`
	TargetDir string            `json:"target_dir,omitempty"`
	Hooks     map[string]string `json:"hooks,omitempty"`
}

func (SourceFile) Kind() ItemKind     { return KindSourceFile }
func (s SourceFile) Describe() string { return describe(KindSourceFile, s.Src) }

// Framework references a native dependency. Custom frameworks ship inside the
// plugin and are referenced by path; others are resolved by name and Spec.
type Framework struct {
	Src    string `json:"src"`
	Custom bool   `json:"custom,omitempty"`
	Spec   string `json:"spec,omitempty"`
}

func (Framework) Kind() ItemKind     { return KindFramework }
func (f Framework) Describe() string { return describe(KindFramework, f.Src) }

// Asset copies Src (relative to the plugin directory) to Target (relative to the web root).
type Asset struct {
	Src    string `json:"src"`
	Target string `json:"target"`
}

func (Asset) Kind() ItemKind     { return KindAsset }
func (a Asset) Describe() string { return describe(KindAsset, a.Src+" -> "+a.Target) }

// JSModule is a script exposed to the packaged application at load time.
type JSModule struct {
	Src      string   `json:"src"`
	Name     string   `json:"name,omitempty"`
	Clobbers []string `json:"clobbers,omitempty"`
	Merges   []string `json:"merges,omitempty"`
	Runs     bool     `json:"runs,omitempty"`
}

func (JSModule) Kind() ItemKind     { return KindJSModule }
func (m JSModule) Describe() string { return describe(KindJSModule, m.Src) }

// ModuleName returns the namespaced module id: "<pluginID>.<name>", where
// name defaults to the source file's base name without extension.
func (m JSModule) ModuleName(pluginID string) string {
	name := m.Name
	if name == "" {
		base := path.Base(toSlash(m.Src))
		name = strings.TrimSuffix(base, path.Ext(base))
	}
	return pluginID + "." + name
}

// RegistryFile returns the module's path within the web root, as recorded in
// the module registry: "plugins/<pluginID>/<src>".
func (m JSModule) RegistryFile(pluginID string) string {
	return strings.Join([]string{"plugins", pluginID, toSlash(m.Src)}, "/")
}

// UnknownItem carries a descriptor entry whose tag is not an installable kind.
type UnknownItem struct {
	Tag string `json:"tag"`
	Src string `json:"src,omitempty"`
}

func (u UnknownItem) Kind() ItemKind   { return ItemKind(u.Tag) }
func (u UnknownItem) Describe() string { return describe(ItemKind(u.Tag), u.Src) }

// ConfigChange is a fragment a plugin merges into a platform configuration file.
type ConfigChange struct {
	Target string `json:"target"`
	Parent string `json:"parent"`
	XML    string `json:"xml"`
}

// Key identifies the change for reference counting.
func (c ConfigChange) Key() string {
	return c.Target + "|" + c.Parent + "|" + c.XML
}

func describe(kind ItemKind, detail string) string {
	if detail == "" {
		return string(kind)
	}
	return string(kind) + " " + detail
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
