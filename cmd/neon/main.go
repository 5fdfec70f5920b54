package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/neon/cmd/neon/commands"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("neon"),
		kong.Description("neon: nightly fetch, build and publish of upstream source trees"),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	if err := parser.Run(commands.NewGlobal(), cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
