package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/flipped-trading/internal/config"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// loadDotEnvOnly loads a .env from the working directory for commands
// that take no config file.
func loadDotEnvOnly() error {
	return config.LoadDotEnv("")
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Archive rotated log files into monthly zips and prune old archives",
		Flags: []cli.Flag{configFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}

			archiver, err := newArchiver(cfg, logger.NewNopLogger())
			if err != nil {
				return err
			}

			archived, err := archiver.ArchiveOldLogs()
			if err != nil {
				return err
			}

			stats, err := archiver.Stats()
			if err != nil {
				return err
			}

			log.Printf("Archived %d log files into %s", archived, archiver.ArchiveDir())

			out, err := yaml.Marshal(stats)
			if err != nil {
				return err
			}

			fmt.Print(string(out))

			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Write the config JSON schema and a sample config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Output `DIR`",
				Value: "./config",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return writeSchema(cmd.String("dir"))
		},
	}
}

// writeSchema writes the schema and, when missing, a sample config that
// points editors at it.
func writeSchema(dir string) error {
	schemaJSON, err := config.Schema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	schemaName := "flipped-config.schema.json"
	schemaPath := filepath.Join(dir, schemaName)
	samplePath := filepath.Join(dir, "config.example.yaml")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		sample, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return fmt.Errorf("failed to marshal sample config: %w", err)
		}

		sample = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), sample...)

		if err := os.WriteFile(samplePath, sample, 0644); err != nil {
			return fmt.Errorf("failed to write sample config: %w", err)
		}

		log.Printf("Sample config generated at %s", samplePath)
	}

	log.Printf("Schema generated at %s", schemaPath)

	return nil
}
