// Package main is the ulpctl command itself.
package main

import (
	"os"

	"go.viam.com/boarddemo/cli"
	"go.viam.com/boarddemo/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("ulpctl").Fatal(err)
	}
}
