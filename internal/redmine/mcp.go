package redmine

import (
	"context"
	"strings"

	"github.com/olgasafonova/redmine-wiki-exporter/internal/base"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/hierarchy"
)

// MaxTextChars caps the page text returned to MCP clients, in bytes
const MaxTextChars = 25000

// ListProjectsMCP wraps ListProjects for MCP tool handlers
func (c *Client) ListProjectsMCP(ctx context.Context, args ListProjectsArgs) (ListProjectsResult, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return ListProjectsResult{}, err
	}

	result := ListProjectsResult{Projects: []ProjectSummary{}}
	for _, p := range projects {
		if args.Prefix != "" && !strings.HasPrefix(p.Identifier, args.Prefix) {
			continue
		}
		result.Projects = append(result.Projects, toProjectSummary(p))
	}
	result.Count = len(result.Projects)

	return result, nil
}

// ListWikiPagesMCP wraps ListWikiPages for MCP tool handlers. Each entry
// carries the directory the page exports to.
func (c *Client) ListWikiPagesMCP(ctx context.Context, args ListWikiPagesArgs) (ListWikiPagesResult, error) {
	if err := ValidateIdentifier(args.Project); err != nil {
		return ListWikiPagesResult{}, err
	}

	refs, err := c.ListWikiPages(ctx, args.Project)
	if err != nil {
		return ListWikiPagesResult{}, err
	}

	placements, err := hierarchy.Materialize(refs)
	if err != nil {
		return ListWikiPagesResult{}, err
	}

	result := ListWikiPagesResult{
		Project: args.Project,
		Pages:   make([]WikiPageSummary, 0, len(placements)),
		Count:   len(placements),
	}
	for _, pl := range placements {
		result.Pages = append(result.Pages, WikiPageSummary{
			Title:         pl.Page.Title,
			Parent:        pl.Page.NodeParent(),
			Path:          pl.Path,
			MissingParent: pl.MissingParent,
			UpdatedOn:     pl.Page.UpdatedOn,
		})
	}

	return result, nil
}

// GetWikiPageMCP wraps GetWikiPage for MCP tool handlers
func (c *Client) GetWikiPageMCP(ctx context.Context, args GetWikiPageArgs) (GetWikiPageResult, error) {
	if err := ValidateIdentifier(args.Project); err != nil {
		return GetWikiPageResult{}, err
	}
	if err := ValidateTitle(args.Title); err != nil {
		return GetWikiPageResult{}, err
	}

	page, err := c.GetWikiPage(ctx, args.Project, args.Title)
	if err != nil {
		return GetWikiPageResult{}, err
	}

	return toWikiPageResult(page), nil
}

func toProjectSummary(p Project) ProjectSummary {
	summary := ProjectSummary{
		Identifier:  p.Identifier,
		Name:        p.Name,
		Description: p.Description,
		Status:      statusToDesc(p.Status),
	}
	if p.Parent != nil {
		summary.Parent = p.Parent.Name
	}
	return summary
}

func toWikiPageResult(page *WikiPage) GetWikiPageResult {
	result := GetWikiPageResult{
		Title:     page.Title,
		Parent:    page.NodeParent(),
		Version:   page.Version,
		UpdatedOn: page.UpdatedOn,
		Text:      page.Text,
	}
	if page.Author != nil {
		result.Author = page.Author.Name
	}
	if len(result.Text) > MaxTextChars {
		result.Text = base.TruncateUTF8(result.Text, MaxTextChars)
		result.Truncated = true
	}
	for _, a := range page.Attachments {
		result.Attachments = append(result.Attachments, AttachmentSummary{
			Filename:    a.Filename,
			Filesize:    a.Filesize,
			ContentType: a.ContentType,
			ContentURL:  a.ContentURL,
		})
	}
	return result
}

// statusToDesc maps Redmine project status codes to names
func statusToDesc(status int) string {
	switch status {
	case 1:
		return "active"
	case 5:
		return "closed"
	case 9:
		return "archived"
	case 0:
		return ""
	default:
		return "unknown"
	}
}
