// main.go
//
// Entry point for the pot-guessing game server.
//
// Commands:
//   - serve    run the HTTP API (default)
//   - migrate  apply embedded SQL migrations and exit
//   - payouts  list payouts awaiting reconciliation
//   - resolve  close a reconciled payout
//   - promote  grant or revoke the operator role
//
// Settings come from the environment (and .env); see internal/config.

package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"withargs" help:"Run the HTTP server"`
	Migrate MigrateCmd       `cmd:"" help:"Apply database migrations"`
	Payouts PayoutsCmd       `cmd:"" help:"List unresolved payouts"`
	Resolve ResolveCmd       `cmd:"" help:"Mark an inconsistent payout as reconciled"`
	Promote PromoteCmd       `cmd:"" help:"Set a user's role (operator or player)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("potguess"),
		kong.Description("Pot-guessing game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
