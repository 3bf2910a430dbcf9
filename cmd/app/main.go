package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/taskboard/internal"
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/taskservice"
	pkgconfig "github.com/starford/taskboard/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithVersion(version),
	)
}

func scan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	started := time.Now()
	report, err := internal.Scan(ctx, internal.WithConfig(cfg), internal.WithLogOutput(io.Discard))
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "Indexed %s tasks under %s/%s in %s\n",
		humanize.Comma(int64(report.Indexed)), cfg.Vault.Path, cfg.Vault.TasksRoot,
		time.Since(started).Round(time.Millisecond))
	if len(report.Notices) > 0 {
		fmt.Fprintf(out, "Skipped %s:\n", humanize.Plural(len(report.Notices), "file", "files"))
		for _, n := range report.Notices {
			fmt.Fprintf(out, "  %s\n", n.Message())
		}
	}
	return nil
}

func printMinimap(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w := newDateParser()
	now := time.Now()
	from, err := parseDate(w, cmd.String("from"), now)
	if err != nil {
		return err
	}
	to, err := parseDate(w, cmd.String("to"), now)
	if err != nil {
		return err
	}

	var g minimap.Granularity
	if raw := cmd.String("granularity"); raw != "" {
		if g, err = minimap.ParseGranularity(raw); err != nil {
			return err
		}
	}

	buckets, err := internal.Minimap(ctx, taskservice.MinimapQuery{
		Project:     cmd.String("project"),
		Granularity: g,
		From:        from,
		To:          to,
	}, internal.WithConfig(cfg), internal.WithLogOutput(io.Discard))
	if err != nil {
		return err
	}

	out := os.Stdout
	if len(buckets) == 0 {
		fmt.Fprintf(out, "No buckets for %s..%s\n", from, to)
		return nil
	}
	total, peak := minimap.Summary(buckets)
	for _, b := range buckets {
		fmt.Fprintf(out, "%s  %4d  %s\n", b.UnitStart.Format(dateLayout), b.Count, bar(b.Count, peak, 40))
	}
	fmt.Fprintf(out, "%s task-%s across %s, peak %d\n",
		humanize.Comma(int64(total)), pluralUnit(g, cfg), humanize.Plural(len(buckets), "bucket", "buckets"), peak)
	return nil
}

func pluralUnit(g minimap.Granularity, cfg *internal.Config) string {
	if g == 0 {
		g = cfg.Minimap.Granularity()
	}
	return g.String() + "s"
}

func bar(n, peak, width int) string {
	if peak == 0 || n == 0 {
		return ""
	}
	return strings.Repeat("#", max(1, n*width/peak))
}

func main() {
	cmd := &cli.Command{
		Name:    "taskboard",
		Usage:   "Task board over a folder of Markdown task files, with timeline minimap and search",
		Version: version,
		Action:  serve,
		// Root flags are inherited by every subcommand.
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and file watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "scan",
				Usage:  "Index the vault once and report skipped files",
				Action: scan,
			},
			{
				Name:  "minimap",
				Usage: "Print task counts per day, week or month",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD or e.g. \"last monday\")", Value: "today"},
					&cli.StringFlag{Name: "to", Usage: "Last date (YYYY-MM-DD or e.g. \"in 4 weeks\")", Value: "in 4 weeks"},
					&cli.StringFlag{Name: "granularity", Aliases: []string{"g"}, Usage: "day, week or month"},
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Project folder below the tasks root"},
				},
				Action: printMinimap,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
