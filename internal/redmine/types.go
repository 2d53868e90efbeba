package redmine

import "encoding/json"

// ProjectListResponse is one page of GET /projects.json
type ProjectListResponse struct {
	Projects   []Project `json:"projects"`
	TotalCount int       `json:"total_count"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

// Project is a Redmine project
type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Identifier  string    `json:"identifier"`
	Description string    `json:"description,omitempty"`
	Status      int       `json:"status,omitempty"` // 1=active, 5=closed, 9=archived
	IsPublic    bool      `json:"is_public,omitempty"`
	Parent      *NamedRef `json:"parent,omitempty"`
	CreatedOn   string    `json:"created_on,omitempty"`
	UpdatedOn   string    `json:"updated_on,omitempty"`
}

// NamedRef is the {id, name} reference Redmine uses for users and projects
type NamedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PageRef is the {title} reference a wiki page uses for its parent
type PageRef struct {
	Title string `json:"title"`
}

// WikiIndexResponse is GET /projects/{id}/wiki/index.json
type WikiIndexResponse struct {
	WikiPages []WikiPageRef `json:"wiki_pages"`
}

// WikiPageRef is a wiki index entry: title and parent, no content
type WikiPageRef struct {
	Title     string   `json:"title"`
	Parent    *PageRef `json:"parent,omitempty"`
	Version   int      `json:"version,omitempty"`
	CreatedOn string   `json:"created_on,omitempty"`
	UpdatedOn string   `json:"updated_on,omitempty"`
}

// NodeTitle implements hierarchy.Node
func (r WikiPageRef) NodeTitle() string { return r.Title }

// NodeParent implements hierarchy.Node
func (r WikiPageRef) NodeParent() string { return parentTitle(r.Parent) }

// WikiPage is a full wiki page as returned by
// GET /projects/{id}/wiki/{title}.json?include=attachments
type WikiPage struct {
	Title       string       `json:"title"`
	Parent      *PageRef     `json:"parent,omitempty"`
	Text        string       `json:"text"`
	Version     int          `json:"version,omitempty"`
	Author      *NamedRef    `json:"author,omitempty"`
	Comments    string       `json:"comments,omitempty"`
	CreatedOn   string       `json:"created_on,omitempty"`
	UpdatedOn   string       `json:"updated_on,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Metadata is the page object exactly as the server sent it, minus
	// "text". Fields this type does not model are kept here too.
	Metadata map[string]json.RawMessage `json:"-"`
}

// NodeTitle implements hierarchy.Node
func (p WikiPage) NodeTitle() string { return p.Title }

// NodeParent implements hierarchy.Node
func (p WikiPage) NodeParent() string { return parentTitle(p.Parent) }

// Attachment is a file attached to a wiki page
type Attachment struct {
	ID          int       `json:"id"`
	Filename    string    `json:"filename"`
	Filesize    int64     `json:"filesize,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Description string    `json:"description,omitempty"`
	ContentURL  string    `json:"content_url"`
	Author      *NamedRef `json:"author,omitempty"`
	CreatedOn   string    `json:"created_on,omitempty"`
}

func parentTitle(ref *PageRef) string {
	if ref == nil {
		return ""
	}
	return ref.Title
}
