// Package tools provides a metadata-driven registry for MCP tool definitions.
// Tools are defined declaratively and registered with type-safe handlers.
package tools

// ToolSpec defines a tool's metadata for declarative registration.
// Each spec maps to a client or exporter method with matching Args/Result types.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "redmine_list_projects")
	Name string

	// Method is the handler method name (e.g., "ListProjects")
	Method string

	// Description is the tool description shown to LLMs
	Description string

	// Title is the human-readable tool title for annotations
	Title string

	// Category groups tools logically (read, export)
	Category string

	// ReadOnly indicates the tool doesn't write anything
	ReadOnly bool

	// Destructive indicates the tool can overwrite data
	Destructive bool

	// Idempotent indicates repeated calls have the same effect
	Idempotent bool

	// OpenWorld indicates the tool accesses external resources
	OpenWorld bool
}

// ToolsByCategory returns the specs in the given category
func ToolsByCategory(category string) []ToolSpec {
	var specs []ToolSpec
	for _, spec := range AllTools {
		if spec.Category == category {
			specs = append(specs, spec)
		}
	}
	return specs
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}
