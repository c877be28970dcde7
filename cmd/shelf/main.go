package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/shelf/internal"
	pkgconfig "github.com/starford/shelf/pkg/config"
)

func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("library"); p != "" {
		cfg.Library.Path = p
	}
	if p := cmd.String("db"); p != "" {
		cfg.SQLite.Path = p
	}
	if cmd.Bool("no-color") {
		cfg.Shell.Color = false
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

// withConfig adapts an entry point that only needs options.
func withConfig(fn func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, opts...)
	}
}

func execLine(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("exec: a command line is required")
	}
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Exec(ctx, strings.Join(cmd.Args().Slice(), " "), opts...)
}

// tagPath maps a tag path given on the command line into /tags.
func tagPath(p string) string {
	return "/tags/" + strings.Trim(p, "/")
}

// tagAction runs one shell command built from the subcommand's arguments.
// Arguments are passed through whole, so tag names may contain spaces.
func tagAction(name string, minArgs int, build func(cmd *cli.Command) []string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() < minArgs {
			return fmt.Errorf("tag: expected %d argument(s), got %d", minArgs, cmd.Args().Len())
		}
		opts, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return internal.RunCommand(ctx, name, build(cmd), opts...)
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Manage the tag tree without entering the shell",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List a tag with its subtags and books",
				ArgsUsage: "[tag]",
				Action: tagAction("ls", 0, func(cmd *cli.Command) []string {
					return []string{"-l", tagPath(cmd.Args().First())}
				}),
			},
			{
				Name:      "add",
				Usage:     "Create a tag and any missing parents",
				ArgsUsage: "<tag>...",
				Action: tagAction("mkdir", 1, func(cmd *cli.Command) []string {
					args := []string{"-p"}
					for _, p := range cmd.Args().Slice() {
						args = append(args, tagPath(p))
					}
					return args
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a tag",
				ArgsUsage: "<tag>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Delete subtags too"},
				},
				Action: tagAction("rm", 1, func(cmd *cli.Command) []string {
					var args []string
					if cmd.Bool("recursive") {
						args = append(args, "-r")
					}
					return append(args, tagPath(cmd.Args().First()))
				}),
			},
			{
				Name:      "mv",
				Usage:     "Rename or move a tag",
				ArgsUsage: "<tag> <new-tag>",
				Action: tagAction("mv", 2, func(cmd *cli.Command) []string {
					return []string{tagPath(cmd.Args().Get(0)), tagPath(cmd.Args().Get(1))}
				}),
			},
			{
				Name:      "link",
				Usage:     "Tag a book",
				ArgsUsage: "<book-id> <tag>",
				Action: tagAction("ln", 2, func(cmd *cli.Command) []string {
					return []string{"/books/" + cmd.Args().Get(0), tagPath(cmd.Args().Get(1))}
				}),
			},
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "shelf",
		Usage:  "Browse and tag a book library through a virtual filesystem and a Unix-like shell",
		Action: withConfig(internal.Shell),
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
				Name:    "library",
				Usage:   "Catalog directory of book records (overrides config)",
				Sources: cli.EnvVars("SHELF_LIBRARY"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (overrides config)",
				Sources: cli.EnvVars("SHELF_DB"),
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "Disable colored output",
				Sources: cli.EnvVars("SHELF_NO_COLOR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "Start the interactive shell (default)",
				Action: withConfig(internal.Shell),
			},
			{
				Name:      "exec",
				Usage:     "Run one command line and exit",
				ArgsUsage: "<command line>",
				Action:    execLine,
			},
			{
				Name:   "sync",
				Usage:  "Reindex the catalog directory",
				Action: withConfig(internal.Sync),
			},
			{
				Name:   "serve",
				Usage:  "Serve the REST API and live change events",
				Action: withConfig(internal.Run),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the shell and catalog to an MCP client over stdio",
				Action: withConfig(internal.MCP),
			},
			tagCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
