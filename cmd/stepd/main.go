package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stepd/cmd/stepd/commands"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("stepd"),
		kong.Description("Step counter daemon: tracks daily and total steps from a hardware step counter."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal(&cli, os.Stdout)
	if err := ctx.Run(global, &cli); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
		adapter.Log(err)
		_, _ = os.Stderr.WriteString(adapter.FormatError(err) + "\n")
		os.Exit(adapter.ExitCodeFor(err))
	}
}
