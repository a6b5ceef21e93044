// Package commands defines the bonsai CLI. Task subcommands work directly
// against the local store; serve runs the HTTP gateway.
package commands

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bonsai-todo/bonsai/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "bonsai",
		Usage: "Todo list with a conversational assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User the task commands act as",
				Value: defaultUser(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewAddCommand(),
			NewListCommand(),
			NewCompleteCommand(),
			NewUpdateCommand(),
			NewDeleteCommand(),
			NewTagsCommand(),
			NewStatusCommand(),
		},
	}
}

func defaultUser() string {
	if u := os.Getenv("BONSAI_USER"); u != "" {
		return u
	}
	return "local"
}
