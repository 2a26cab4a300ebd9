package commands

import (
	"context"
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/platform"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/pluginxml"
	"git.home.luguber.info/inful/plugsmith/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Dir         string            `arg:"" help:"Local plugin directory"`
	Var         map[string]string `help:"Install variable, repeatable" placeholder:"KEY=VALUE"`
	PlatformWww bool              `name:"platform-www" help:"Install web files into platform_www instead of www"`
	Debounce    time.Duration     `help:"Quiet period before reinstalling" default:"500ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	dir, err := absDir(w.Dir)
	if err != nil {
		return err
	}
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := &platform.InstallOptions{Variables: w.Var, UsePlatformWww: w.PlatformWww || s.cfg.Install.UsePlatformWww}
	r := &reinstaller{api: s.api, dir: dir, opts: opts}
	if err := r.install(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Installed %s@%s, watching %s\n", r.current.ID(), r.current.Version(), dir)

	watcher, err := watch.New(dir, w.Debounce, func(ctx context.Context) error {
		if err := r.reinstall(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.out(), "Reinstalled %s@%s\n", r.current.ID(), r.current.Version())
		return nil
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch plugin directory").
			WithContext("path", dir).
			Build()
	}
	return watcher.Run(ctx)
}

// reinstaller keeps the descriptor that is currently installed so removal
// always undoes exactly what the last install did.
type reinstaller struct {
	api     *platform.API
	dir     string
	opts    *platform.InstallOptions
	current *plugin.Info
}

func (r *reinstaller) install(ctx context.Context) error {
	info, err := pluginxml.Load(r.dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "failed to read plugin descriptor").
			WithContext("path", r.dir).
			UserAction().
			Build()
	}
	if err := r.api.AddPlugin(ctx, info, r.opts); err != nil {
		return err
	}
	r.current = info
	return nil
}

// reinstall removes the current plugin and installs the one on disk. A
// descriptor that no longer parses leaves the current install in place.
func (r *reinstaller) reinstall(ctx context.Context) error {
	next, err := pluginxml.Load(r.dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "failed to read plugin descriptor").
			WithContext("path", r.dir).
			Build()
	}
	if r.current != nil {
		if err := r.api.RemovePlugin(ctx, r.current, r.opts); err != nil {
			return err
		}
		r.current = nil
	}
	if err := r.api.AddPlugin(ctx, next, r.opts); err != nil {
		return err
	}
	r.current = next
	return nil
}
