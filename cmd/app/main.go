package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mediabin/internal"
	"github.com/starford/mediabin/internal/sequence"
	pkgconfig "github.com/starford/mediabin/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("project"); p != "" {
		cfg.Project.Path = p
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func importCmd(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("import: at least one path is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)}
	switch {
	case cmd.Bool("yes"):
		opts = append(opts, internal.WithConfirmer(sequence.Always))
	case cmd.Bool("no-sequences"):
		opts = append(opts, internal.WithConfirmer(sequence.Never))
	default:
		opts = append(opts, internal.WithConfirmer(newPromptConfirmer(os.Stdin, os.Stdout)))
	}

	rep, err := internal.Import(ctx, paths, opts...)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Println(renderReport(rep))
	return nil
}

func listCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	assets, err := internal.List(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	fmt.Println(renderAssets(assets))
	return nil
}

func mcpCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dir := cmd.String("inbox"); dir != "" {
		cfg.MCP.InboxDir = dir
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "mediabin",
		Usage:  "Media bin: catalogue video, audio, images and image sequences with thumbnails",
		Action: serve,
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
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Project document, overrides project.path",
				Sources: cli.EnvVars("MEDIABIN_PROJECT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, thumbnail service and watch folders",
				Action: serve,
			},
			{
				Name:      "import",
				Usage:     "Import files or directories into the project",
				ArgsUsage: "<path>...",
				Action:    importCmd,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Import every detected image sequence without asking",
					},
					&cli.BoolFlag{
						Name:  "no-sequences",
						Usage: "Import sequence frames as single images",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Print the assets stored in the project",
				Action: listCmd,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcpCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "inbox",
						Usage: "Directory for media fetched by the fetch_media tool",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
