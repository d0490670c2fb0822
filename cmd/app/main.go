package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tracmark/internal"
	pkgconfig "github.com/starford/tracmark/pkg/config"
)

// loadConfig reads the config file and applies the command-line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	err := pkgconfig.LoadOptional(cmd.String("config"), cfg, func(c *internal.Config) {
		if v := cmd.String("env"); v != "" {
			c.Trac.EnvPath = v
		}
		if v := cmd.String("folder"); v != "" {
			c.Output.WikiDir = v
		}
		if v := cmd.String("since"); v != "" {
			c.Filter.Since = v
		}
		if v := cmd.String("page"); v != "" {
			c.Filter.Page = v
		}
		if cmd.Bool("force") {
			c.Migrate.Force = true
		}
		if cmd.Bool("watch") {
			c.Migrate.Watch = true
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func convertAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in := os.Stdin
	if path := cmd.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return internal.Convert(ctx, in, os.Stdout, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:   "tracmark",
		Usage:  "Migrate a Trac wiki to Markdown files",
		Action: migrateAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Path to the Trac environment",
				Sources: cli.EnvVars("TRAC_ENV"),
			},
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Folder the converted pages are written to",
			},
			&cli.StringFlag{
				Name:    "since",
				Aliases: []string{"d"},
				Usage:   "Earliest modification date to include, YYYY-MM-DD",
			},
			&cli.StringFlag{
				Name:  "page",
				Usage: "Migrate a single page by its full name",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Rewrite pages even when they are up to date",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and migrate again when the Trac database changes",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Convert every selected page and copy its attachments",
				Action: migrateAction,
			},
			{
				Name:      "convert",
				Usage:     "Convert Trac markup from a file or stdin and print Markdown",
				ArgsUsage: "[file]",
				Action:    convertAction,
			},
			{
				Name:   "serve",
				Usage:  "Serve the conversion HTTP API",
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the conversion tools over MCP on stdio",
				Action: mcpAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
