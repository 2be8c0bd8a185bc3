package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/smallbiznis/orgkeys/cmd/orgkeysctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Issue   commands.IssueCmd   `cmd:"" help:"Sign a credential without storing it"`
		Inspect commands.InspectCmd `cmd:"" help:"Verify a credential and print its claims"`
		Hash    commands.HashCmd    `cmd:"" help:"Print the stored digest of a credential"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("orgkeysctl"),
		kong.Description("Operator tooling for organization API credentials."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Version: version, Out: os.Stdout})
	cmd.FatalIfErrorf(err)
}
