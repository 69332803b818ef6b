package main

import (
	"fmt"
	"os"

	bridgeservice "github.com/valtbridge/bridge-service"
	"github.com/urfave/cli/v2"
)

const (
	flagCfg   = "cfg"
	flagNonce = "nonce"
)

const (
	// App name
	appName = "valt-bridge"
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = bridgeservice.Version
	cfgFlag := &cli.StringFlag{
		Name:     flagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration `FILE`",
		Required: false,
	}
	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Application version and build",
			Action:  versionCmd,
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the valt bridge",
			Action:  start,
			Flags:   []cli.Flag{cfgFlag},
		},
		{
			Name:    "requeue",
			Aliases: []string{},
			Usage:   "Move a failed deposit back to pending so that its payout is retried",
			Action:  requeueCmd,
			Flags: []cli.Flag{
				cfgFlag,
				&cli.StringFlag{
					Name:     flagNonce,
					Usage:    "Nonce of the failed deposit",
					Required: true,
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	}
}
