package tools

// AllTools contains all tool specifications for the Redmine wiki MCP server.
// Tool descriptions follow a structured format for LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	// ==========================================================================
	// READ TOOLS
	// ==========================================================================
	{
		Name:     "redmine_list_projects",
		Method:   "ListProjects",
		Title:    "List Redmine Projects",
		Category: "read",
		Description: `List every Redmine project visible to the configured user.

USE WHEN: User asks "which projects are there", "what wikis can I export", or needs a project identifier.

NOT FOR: Listing wiki pages of a project (use redmine_list_wiki_pages).

PARAMETERS:
- prefix: Only projects whose identifier starts with this (optional)

RETURNS: Identifier, name, status and parent of each project.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "redmine_list_wiki_pages",
		Method:   "ListWikiPages",
		Title:    "List Wiki Pages",
		Category: "read",
		Description: `List the wiki pages of one project with their place in the page tree.

USE WHEN: User asks "what pages does the wiki of X have", "show the wiki structure", or wants to preview an export.

NOT FOR: Reading page content (use redmine_get_wiki_page).

PARAMETERS:
- project: Project identifier (required)

RETURNS: Each page's title, parent and the directory path it exports to. Pages whose parent no longer exists are flagged.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "redmine_get_wiki_page",
		Method:   "GetWikiPage",
		Title:    "Get Wiki Page",
		Category: "read",
		Description: `Fetch the Textile content and attachment list of one wiki page.

USE WHEN: User asks "show me page Y of project X", "what does the Setup page say".

NOT FOR: Exporting to disk (use redmine_export_project).

PARAMETERS:
- project: Project identifier (required)
- title: Page title (required)

RETURNS: Text (truncated for very long pages), author, version and attachments.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// EXPORT TOOLS
	// ==========================================================================
	{
		Name:     "redmine_export_project",
		Method:   "ExportProject",
		Title:    "Export Project Wiki",
		Category: "export",
		Description: `Export the whole wiki of one project to the configured output directory.

USE WHEN: User asks "back up the wiki of X", "export project X to disk".

NOT FOR: Reading a single page (use redmine_get_wiki_page).

PARAMETERS:
- project: Project identifier (required)

RETURNS: Pages written and skipped, attachments downloaded, and the output directory. Existing files are overwritten.`,
		Destructive: true,
		Idempotent:  true,
		OpenWorld:   true,
	},
}
