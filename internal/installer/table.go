// Package installer maps each install item kind to the pair of operations
// that apply it to, and remove it from, a platform project.
//
// The table is fixed at compile time. Callers look a kind up and receive a
// Handler; unknown kinds are reported as not found and never fail here.
package installer

import (
	"context"
	"slices"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// Handler installs and uninstalls one item kind. Both operations depend only
// on their arguments and the filesystem; Uninstall immediately after Install
// restores the prior state.
type Handler interface {
	Install(ctx context.Context, t Target, item plugin.Item, pluginDir, pluginID string) error
	Uninstall(ctx context.Context, t Target, item plugin.Item, pluginID string) error
}

var table = map[plugin.ItemKind]Handler{
	plugin.KindSourceFile: sourceFileHandler{},
	plugin.KindFramework:  frameworkHandler{},
	plugin.KindAsset:      assetHandler{},
	plugin.KindJSModule:   jsModuleHandler{},
}

// Lookup returns the handler for kind.
func Lookup(kind plugin.ItemKind) (Handler, bool) {
	h, ok := table[kind]
	return h, ok
}

// Kinds lists the kinds with a handler, sorted.
func Kinds() []plugin.ItemKind {
	out := make([]plugin.ItemKind, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
