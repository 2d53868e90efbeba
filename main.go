// Redmine Wiki Exporter - copies every Redmine project wiki to local disk
// as Textile files with attachments and metadata, mirroring the page tree.
// It can also serve the same operations as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	"github.com/olgasafonova/redmine-wiki-exporter/internal/config"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/export"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/redmine"
	"github.com/olgasafonova/redmine-wiki-exporter/metrics"
	"github.com/olgasafonova/redmine-wiki-exporter/tools"
	"github.com/olgasafonova/redmine-wiki-exporter/tracing"
)

const (
	ServerName    = "redmine-wiki-exporter"
	ServerVersion = "1.0.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServerName, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    ServerName,
		Usage:   "Export Redmine project wikis to a local directory tree",
		Version: ServerVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o", "output_dir"},
				Usage:   "directory the wikis are written to (created if absent)",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML configuration file",
				Value: config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file loaded before the configuration",
				Value: config.DefaultEnvFile,
			},
			&cli.StringSliceFlag{
				Name:  "project",
				Usage: "only export this project identifier (repeatable)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write Prometheus metrics in text format to this file when done",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
				Value: "text",
			},
		},
		Action: exportAction,
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Export every project wiki (default command)",
				Action: exportAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve Redmine wiki tools over MCP on stdio",
				Action: mcpAction,
			},
		},
	}
}

// exportAction runs a full export
func exportAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.String("log-level"), cmd.String("log-format"), os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdown, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer shutdownTracing(shutdown, logger)

	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return err
	}
	if err := cfg.ResolveCredentials(config.TerminalPrompter{}); err != nil {
		return err
	}

	writer, err := export.NewWriter(cmd.String("output-dir"))
	if err != nil {
		return err
	}
	if err := writer.EnsureDir(writer.Root); err != nil {
		return err
	}

	client := newRedmineClient(cfg, logger)
	exporter := export.New(client, writer,
		export.WithLogger(logger),
		export.WithProjects(cmd.StringSlice("project")...),
	)

	logger.Info("Starting export",
		"redmine_url", cfg.Redmine.URL,
		"user", cfg.Redmine.User,
		"output_dir", writer.Root)

	start := time.Now()
	summary, runErr := exporter.Run(ctx)
	logger.Info("Export finished",
		"projects", len(summary.Projects),
		"pages", summary.Pages(),
		"failed", summary.Failed,
		"duration", time.Since(start).Round(time.Millisecond))

	if path := cmd.String("metrics-file"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Error("Failed to write metrics file", "path", path, "error", err)
		}
	}

	return runErr
}

// mcpAction serves the MCP tools on stdio. Credentials cannot be prompted
// for because stdin carries the protocol.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.String("log-level"), cmd.String("log-format"), os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdown, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer shutdownTracing(shutdown, logger)

	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return err
	}
	if err := cfg.ResolveCredentials(nil); err != nil {
		return fmt.Errorf("%w: set them in %s or %s/%s", err,
			cmd.String("config"), config.EnvUser, config.EnvPassword)
	}

	writer, err := export.NewWriter(cmd.String("output-dir"))
	if err != nil {
		return err
	}

	client := newRedmineClient(cfg, logger)
	exporter := export.New(client, writer, export.WithLogger(logger))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Instructions: `Redmine Wiki Exporter provides read access to Redmine project wikis and can export them to disk.

Available tools:
- redmine_list_projects: List projects visible to the configured user
- redmine_list_wiki_pages: List a project's wiki pages and their export paths
- redmine_get_wiki_page: Read one page's Textile content and attachments
- redmine_export_project: Write a project's wiki to the output directory`,
	})

	tools.NewHandlerRegistry(client, exporter, logger).RegisterAll(server)

	logger.Info("Starting MCP server",
		"name", ServerName,
		"version", ServerVersion,
		"redmine_url", cfg.Redmine.URL,
		"output_dir", writer.Root)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newRedmineClient(cfg *config.Config, logger *slog.Logger) *redmine.Client {
	return redmine.NewClient(cfg.Redmine.URL,
		redmine.WithLogger(logger),
		redmine.WithTimeout(cfg.Redmine.Timeout.Duration),
		redmine.WithUserAgent(cfg.Redmine.UserAgent),
		redmine.WithBasicAuth(cfg.Redmine.User, cfg.Redmine.Password),
	)
}

// newLogger builds the stderr logger. stdout is left to MCP.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	cfg := tracing.DefaultConfig()
	cfg.ServiceVersion = ServerVersion
	shutdown, err := tracing.Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	return shutdown, nil
}

func shutdownTracing(shutdown func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("Tracing shutdown failed", "error", err)
	}
}
