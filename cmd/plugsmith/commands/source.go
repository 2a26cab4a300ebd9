package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/plugsmith/internal/config"
	"git.home.luguber.info/inful/plugsmith/internal/fetch"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/pluginxml"
	"git.home.luguber.info/inful/plugsmith/internal/workspace"
)

// loadPlugin reads the descriptor behind source. Git URLs are cloned into a
// scratch workspace that the returned cleanup removes; installers copy what
// they need out of it.
func loadPlugin(ctx context.Context, cfg *config.Config, source string) (*plugin.Info, func(), error) {
	noop := func() {}
	if !fetch.IsRemote(source) {
		dir, err := absDir(source)
		if err != nil {
			return nil, noop, err
		}
		info, err := pluginxml.Load(dir)
		if err != nil {
			return nil, noop, ferrors.WrapError(err, ferrors.CategoryValidation, "failed to read plugin descriptor").
				WithContext("path", dir).
				UserAction().
				Build()
		}
		return info, noop, nil
	}

	src, err := fetch.ParseSource(source)
	if err != nil {
		return nil, noop, err
	}
	ws := workspace.NewScratch("")
	cleanup := func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to clean up workspace", logfields.Path(ws.Path()), logfields.Error(err))
		}
	}
	res, err := fetch.New(ws, cfg.Fetch.ShallowDepth).Fetch(ctx, src)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return res.Plugin, cleanup, nil
}
