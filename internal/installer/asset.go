package installer

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

type assetHandler struct{}

// Install copies <pluginDir>/<src>, a file or directory, to <web>/<target>.
func (assetHandler) Install(ctx context.Context, t Target, item plugin.Item, pluginDir, pluginID string) error {
	a, err := itemAs[plugin.Asset](item)
	if err != nil {
		return err
	}
	src := filepath.Join(pluginDir, filepath.FromSlash(a.Src))
	return placeTree(ctx, t, pluginID, src, assetTarget(t, a))
}

// Uninstall removes what Install copied and restores overwritten files.
func (assetHandler) Uninstall(ctx context.Context, t Target, item plugin.Item, pluginID string) error {
	a, err := itemAs[plugin.Asset](item)
	if err != nil {
		return err
	}
	return unplace(ctx, t, pluginID, assetTarget(t, a), t.Web)
}

func assetTarget(t Target, a plugin.Asset) string {
	return filepath.Join(t.Web, filepath.FromSlash(a.Target))
}
