package commands

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/webmanifest"
)

// ManifestCmd implements the 'manifest' command.
type ManifestCmd struct {
	PlatformWww bool `name:"platform-www" help:"Write into platform_www instead of www"`
}

func (m *ManifestCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	path, err := s.api.RegenerateManifest(ctx, m.PlatformWww || s.cfg.Install.UsePlatformWww)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote %s\n", path)
	return nil
}

// WebmanifestCmd implements the 'webmanifest' command.
type WebmanifestCmd struct {
	ProjectWww  string `name:"project-www" help:"Project www directory holding the start page" default:"www"`
	PlatformWww bool   `name:"platform-www" help:"Write into platform_www instead of www"`
}

func (w *WebmanifestCmd) Run(g *Global, root *CLI) error {
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	projectWww := s.cfg.Resolve(w.ProjectWww)
	target := s.api.Locations().WebRoot(w.PlatformWww || s.cfg.Install.UsePlatformWww)
	path, copied, err := webmanifest.Generate(s.cfg.App, projectWww, target)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write web manifest").
			WithContext("dir", target).
			Build()
	}
	if copied {
		_, _ = fmt.Fprintf(g.out(), "Copied %s\n", path)
		return nil
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote %s\n", path)
	return nil
}
