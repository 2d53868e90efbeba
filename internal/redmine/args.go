package redmine

// ListProjectsArgs contains parameters for listing projects
type ListProjectsArgs struct {
	// Prefix filters projects whose identifier starts with it
	Prefix string `json:"prefix,omitempty" jsonschema_description:"Only return projects whose identifier starts with this prefix"`
}

// ListProjectsResult is the result of listing projects
type ListProjectsResult struct {
	Projects []ProjectSummary `json:"projects"`
	Count    int              `json:"count"`
}

// ProjectSummary is a compact project representation
type ProjectSummary struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parent      string `json:"parent,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ListWikiPagesArgs contains parameters for listing a project's wiki
type ListWikiPagesArgs struct {
	Project string `json:"project" jsonschema:"required" jsonschema_description:"Project identifier, e.g. 'demo'"`
}

// ListWikiPagesResult is the wiki index of one project with resolved paths
type ListWikiPagesResult struct {
	Project string            `json:"project"`
	Pages   []WikiPageSummary `json:"pages"`
	Count   int               `json:"count"`
}

// WikiPageSummary is one index entry with the directory it exports to
type WikiPageSummary struct {
	Title         string `json:"title"`
	Parent        string `json:"parent,omitempty"`
	Path          string `json:"path"`
	MissingParent string `json:"missing_parent,omitempty"`
	UpdatedOn     string `json:"updated_on,omitempty"`
}

// GetWikiPageArgs contains parameters for reading one wiki page
type GetWikiPageArgs struct {
	Project string `json:"project" jsonschema:"required" jsonschema_description:"Project identifier"`
	Title   string `json:"title" jsonschema:"required" jsonschema_description:"Wiki page title, e.g. 'Setup'"`
}

// GetWikiPageResult is one page with its Textile content
type GetWikiPageResult struct {
	Title       string              `json:"title"`
	Parent      string              `json:"parent,omitempty"`
	Version     int                 `json:"version,omitempty"`
	Author      string              `json:"author,omitempty"`
	UpdatedOn   string              `json:"updated_on,omitempty"`
	Text        string              `json:"text"`
	Truncated   bool                `json:"truncated,omitempty"`
	Attachments []AttachmentSummary `json:"attachments,omitempty"`
}

// AttachmentSummary is a compact attachment representation
type AttachmentSummary struct {
	Filename    string `json:"filename"`
	Filesize    int64  `json:"filesize,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ContentURL  string `json:"content_url"`
}
