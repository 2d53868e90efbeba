package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/export"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/redmine"
	"github.com/olgasafonova/redmine-wiki-exporter/metrics"
	"github.com/olgasafonova/redmine-wiki-exporter/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	client   *redmine.Client
	exporter *export.Exporter
	logger   *slog.Logger
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry(client *redmine.Client, exporter *export.Exporter, logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		client:   client,
		exporter: exporter,
		logger:   logger,
	}
}

// RegisterAll registers all tools with the MCP server.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) {
	for _, spec := range AllTools {
		h.registerByName(server, spec)
	}
	h.logger.Info("Registered all tools", "count", len(AllTools))
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) {
	tool := h.buildTool(spec)

	switch spec.Method {
	case "ListProjects":
		register(h, server, tool, spec, h.client.ListProjectsMCP)
	case "ListWikiPages":
		register(h, server, tool, spec, h.client.ListWikiPagesMCP)
	case "GetWikiPage":
		register(h, server, tool, spec, h.client.GetWikiPageMCP)
	case "ExportProject":
		register(h, server, tool, spec, h.exporter.ExportProjectMCP)
	default:
		h.logger.Warn("Unknown tool method", "tool", spec.Name, "method", spec.Method)
	}
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	return &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the handler with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (*mcp.CallToolResult, Result, error) {
		defer h.recoverPanic(spec.Name)

		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
		defer span.End()
		tracing.AddToolAttributes(span, spec.Name, spec.Category)
		span.SetAttributes(attribute.Bool("mcp.tool.readonly", spec.ReadOnly))

		start := time.Now()
		result, err := method(ctx, args)
		duration := time.Since(start).Seconds()

		span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

		if err != nil {
			tracing.RecordError(span, err)
			metrics.RecordRequest(spec.Name, duration, false)
			var zero Result
			return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
		}

		span.SetStatus(codes.Ok, "")
		metrics.RecordRequest(spec.Name, duration, true)
		h.logExecution(spec, args, result)
		return nil, result, nil
	})
}

// recoverPanic recovers from panics in tool handlers.
func (h *HandlerRegistry) recoverPanic(toolName string) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		h.logger.Error("Panic recovered",
			"tool", toolName,
			"panic", rec,
			"stack", string(debug.Stack()))
	}
}

// logExecution logs tool execution details.
func (h *HandlerRegistry) logExecution(spec ToolSpec, args, result any) {
	attrs := []any{"tool", spec.Name}

	switch a := args.(type) {
	case redmine.ListProjectsArgs:
		if a.Prefix != "" {
			attrs = append(attrs, "prefix", a.Prefix)
		}
	case redmine.ListWikiPagesArgs:
		attrs = append(attrs, "project", a.Project)
	case redmine.GetWikiPageArgs:
		attrs = append(attrs, "project", a.Project, "title", a.Title)
	case export.ExportProjectArgs:
		attrs = append(attrs, "project", a.Project)
	}

	switch r := result.(type) {
	case redmine.ListProjectsResult:
		attrs = append(attrs, "projects", r.Count)
	case redmine.ListWikiPagesResult:
		attrs = append(attrs, "pages", r.Count)
	case redmine.GetWikiPageResult:
		attrs = append(attrs, "attachments", len(r.Attachments), "truncated", r.Truncated)
	case export.ExportProjectResult:
		attrs = append(attrs, "outcome", r.Result.Outcome, "pages", r.Result.Pages, "attachments", r.Result.Attachments)
	}

	h.logger.Info("Tool executed", attrs...)
}
