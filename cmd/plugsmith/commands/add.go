package commands

import (
	"fmt"

	"git.home.luguber.info/inful/plugsmith/internal/platform"
)

// AddCmd implements the 'add' command.
type AddCmd struct {
	Source          string            `arg:"" help:"Plugin directory, or git URL with optional #ref"`
	Var             map[string]string `help:"Install variable, repeatable" placeholder:"KEY=VALUE"`
	PlatformWww     bool              `name:"platform-www" help:"Install web files into platform_www instead of www"`
	PlatformVersion string            `name:"platform-version" help:"Platform version passed to installers"`
}

func (a *AddCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	info, cleanup, err := loadPlugin(ctx, s.cfg, a.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := &platform.InstallOptions{
		Variables:       a.Var,
		PlatformVersion: a.PlatformVersion,
		UsePlatformWww:  a.PlatformWww || s.cfg.Install.UsePlatformWww,
	}
	if err := s.api.AddPlugin(ctx, info, opts); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Installed %s@%s for %s\n", info.ID(), info.Version(), s.api.Info().Name)
	return nil
}

// RemoveCmd implements the 'remove' command.
type RemoveCmd struct {
	Source      string `arg:"" help:"Plugin directory, or git URL with optional #ref"`
	PlatformWww bool   `name:"platform-www" help:"Plugin web files live in platform_www"`
}

func (r *RemoveCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	info, cleanup, err := loadPlugin(ctx, s.cfg, r.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := &platform.InstallOptions{UsePlatformWww: r.PlatformWww || s.cfg.Install.UsePlatformWww}
	if err := s.api.RemovePlugin(ctx, info, opts); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Removed %s from %s\n", info.ID(), s.api.Info().Name)
	return nil
}
