package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/tidwall/pretty"

	"git.home.luguber.info/inful/plugsmith/internal/platform"
	"git.home.luguber.info/inful/plugsmith/internal/registry"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	Match string `short:"m" help:"Fuzzy filter on plugin id"`
	JSON  bool   `help:"Print the raw registry as JSON"`
}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	api, err := platform.New(cfg)
	if err != nil {
		return err
	}
	state, err := api.Modules()
	if err != nil {
		return err
	}
	if l.JSON {
		data, err := registry.Encode(state)
		if err != nil {
			return err
		}
		_, err = g.out().Write(pretty.Pretty(data))
		return err
	}
	ids := selectPlugins(state, l.Match)
	if len(ids) == 0 && l.Match != "" {
		_, err := fmt.Fprintf(g.out(), "No plugins match %q\n", l.Match)
		return err
	}
	return printPlugins(g.out(), state, ids)
}

// selectPlugins returns installed plugin ids, sorted, or ranked by fuzzy
// score when pattern is set.
func selectPlugins(state registry.State, pattern string) []string {
	known := map[string]struct{}{}
	for id := range state.Metadata {
		known[id] = struct{}{}
	}
	for id := range state.Installed {
		known[id] = struct{}{}
	}
	for id := range state.ByPlugin() {
		known[id] = struct{}{}
	}
	ids := slices.Sorted(maps.Keys(known))
	if pattern == "" {
		return ids
	}
	matches := fuzzy.Find(pattern, ids)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

func printPlugins(w io.Writer, state registry.State, ids []string) error {
	if len(ids) == 0 {
		_, err := fmt.Fprintln(w, "No plugins installed")
		return err
	}
	byPlugin := state.ByPlugin()
	for _, id := range ids {
		version := state.Metadata[id]
		if version == "" {
			version = "-"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", id, version); err != nil {
			return err
		}
		for _, e := range byPlugin[id] {
			var extra []string
			if len(e.Clobbers) > 0 {
				extra = append(extra, "clobbers="+strings.Join(e.Clobbers, ","))
			}
			if len(e.Merges) > 0 {
				extra = append(extra, "merges="+strings.Join(e.Merges, ","))
			}
			if e.Runs {
				extra = append(extra, "runs")
			}
			line := fmt.Sprintf("  %s  %s", e.ID, e.File)
			if len(extra) > 0 {
				line += "  " + strings.Join(extra, " ")
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
