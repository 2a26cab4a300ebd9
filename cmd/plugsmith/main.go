package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/plugsmith/cmd/plugsmith/commands"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("plugsmith"),
		kong.Description("Install and remove plugins in a platform project."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Out: os.Stdout}, cli)
	if err == nil {
		return
	}
	adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	adapter.Log(err)
	_, _ = fmt.Fprintln(os.Stderr, adapter.FormatError(err))
	os.Exit(adapter.ExitCodeFor(err))
}
