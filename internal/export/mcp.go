package export

import (
	"context"

	"github.com/olgasafonova/redmine-wiki-exporter/internal/redmine"
)

// ExportProjectArgs are the arguments of the export MCP tool
type ExportProjectArgs struct {
	Project string `json:"project" jsonschema:"required" jsonschema_description:"Project identifier to export, e.g. 'demo'"`
}

// ExportProjectResult is returned by the export MCP tool
type ExportProjectResult struct {
	Result    ProjectResult `json:"result"`
	OutputDir string        `json:"output_dir"`
}

// ExportProjectMCP wraps ExportProject for MCP tool handlers
func (e *Exporter) ExportProjectMCP(ctx context.Context, args ExportProjectArgs) (ExportProjectResult, error) {
	if err := redmine.ValidateIdentifier(args.Project); err != nil {
		return ExportProjectResult{}, err
	}

	result, err := e.ExportProject(ctx, args.Project)
	if err != nil {
		return ExportProjectResult{}, err
	}
	return ExportProjectResult{Result: result, OutputDir: e.writer.Root}, nil
}
