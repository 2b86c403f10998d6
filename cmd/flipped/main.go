package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rxtech-lab/flipped-trading/internal/version"
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML config `FILE`",
		Value:   "config/config.yaml",
		Sources: cli.EnvVars("FLIPPED_CONFIG"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "flipped",
		Usage:   "ML gated flipped grid basket trader",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			runCommand(),
			replayCommand(),
			downloadCommand(),
			archiveCommand(),
			schemaCommand(),
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Println(version.GetVersion())

					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
