// leasewatch follows the leasing protocol on a ledger: it prints decoded
// events for watched accounts and reads the registry state.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/leasenet/ledgerclient/client"
	"github.com/leasenet/ledgerclient/cmd/utils"
	"github.com/leasenet/ledgerclient/log"
)

var (
	clientIdentifier = "leasewatch"
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""
	// The app that holds all commands and flags.
	app = utils.NewApp(clientIdentifier, gitCommit, gitDate, "the leasewatch command line interface")
)

func initApp() {
	app.Action = leasewatch
	app.HideVersion = true // we have a command to print the version
	app.Commands = []*cli.Command{
		watchCommand,
		configCommand,
		hostsCommand,
		epochCommand,
		statusCommand,
		utils.VersionCommand,
	}
	app.Flags = utils.CommonFlags
	sort.Sort(cli.CommandsByName(app.Commands))
}

func main() {
	initApp()
	if err := app.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func leasewatch(ctx *cli.Context) error {
	utils.SetLogger(ctx)
	if ctx.NArg() > 0 {
		return fmt.Errorf("invalid command: %q", ctx.Args().Get(0))
	}
	_ = cli.ShowAppHelp(ctx)
	fmt.Println()
	return fmt.Errorf("please specify a sub command to run")
}

// connect builds a client from the command line and connects it.
func connect(ctx *cli.Context) (*client.Client, error) {
	utils.SetLogger(ctx)
	config, err := utils.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	c, err := client.New(config, client.Options{})
	if err != nil {
		return nil, err
	}
	if err = c.Connect(ctx.Context); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
