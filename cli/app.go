// Package cli contains ulpctl, a command line client for a running board demo.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	flagAddr    = "addr"
	flagTimeout = "timeout"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "ulpctl",
		Usage:           "send blink cycles to a board demo and check on it",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagAddr,
				Aliases: []string{"a"},
				Value:   "http://localhost:8080",
				Usage:   "base URL of the demo",
				EnvVars: []string{"ULPCTL_ADDR"},
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Value: 10 * time.Second,
				Usage: "request timeout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "hand a blink count to the ULP; the demo goes to sleep afterwards",
				ArgsUsage: "<cycles>",
				Action:    StartAction,
			},
			{
				Name:   "status",
				Usage:  "print the state of the cycles handoff",
				Action: StatusAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the raw status",
					},
				},
			},
		},
	}
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
