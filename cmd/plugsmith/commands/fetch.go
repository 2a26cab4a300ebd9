package commands

import (
	"fmt"

	"git.home.luguber.info/inful/plugsmith/internal/fetch"
	"git.home.luguber.info/inful/plugsmith/internal/workspace"
)

// FetchCmd implements the 'fetch' command.
type FetchCmd struct {
	Sources     []string `arg:"" help:"Git URLs with optional #ref"`
	Concurrency int      `short:"j" help:"Parallel clones" default:"4"`
}

func (f *FetchCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	srcs := make([]fetch.Source, 0, len(f.Sources))
	for _, raw := range f.Sources {
		src, err := fetch.ParseSource(raw)
		if err != nil {
			return err
		}
		srcs = append(srcs, src)
	}

	fetcher := fetch.New(workspace.NewCache(cfg.Resolve(cfg.Fetch.CacheDir)), cfg.Fetch.ShallowDepth)
	results, err := fetcher.FetchAll(ctx, srcs, f.Concurrency)
	if err != nil {
		return err
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(g.out(), "%s\t%s\t%s\n", r.Plugin.ID(), r.Plugin.Version(), r.Dir)
	}
	return nil
}
