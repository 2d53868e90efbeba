// Package export writes Redmine wikis to a local directory tree.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// TextExtension is appended to a page title for its content file
	TextExtension = ".textile"

	// MetadataSuffix is appended to a page title for its metadata sidecar
	MetadataSuffix = "-metadata.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer places exported files under Root. Every path it touches is built
// from Root, so the process working directory is irrelevant.
type Writer struct {
	Root string
}

// NewWriter returns a Writer rooted at the absolute form of root.
func NewWriter(root string) (*Writer, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory %s: %w", root, err)
	}
	return &Writer{Root: abs}, nil
}

// NormalizeFilename replaces spaces with underscores. Applying it twice
// gives the same result as applying it once.
func NormalizeFilename(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// safeSegment turns a title into a single path element
func safeSegment(name string) string {
	name = NormalizeFilename(name)
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	switch name {
	case "", ".", "..":
		return "_" + name
	}
	return name
}

// PageDir returns the directory for a page of project whose ancestor
// titles are segments (root first).
func (w *Writer) PageDir(project string, segments []string) string {
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, w.Root, safeSegment(project))
	for _, s := range segments {
		parts = append(parts, safeSegment(s))
	}
	return filepath.Join(parts...)
}

// EnsureDir creates dir and its parents. An existing directory is fine.
func (w *Writer) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// TextPath is the content file of title inside dir
func TextPath(dir, title string) string {
	return filepath.Join(dir, safeSegment(title)+TextExtension)
}

// MetadataPath is the metadata sidecar of title inside dir
func MetadataPath(dir, title string) string {
	return filepath.Join(dir, safeSegment(title)+MetadataSuffix)
}

// AttachmentPath is where an attachment named filename is stored inside dir
func AttachmentPath(dir, filename string) string {
	return filepath.Join(dir, safeSegment(filename))
}

// WriteText writes the page content, followed by a Textile list linking
// each attachment file when there are any. The file is replaced.
func (w *Writer) WriteText(dir, title, content string, attachments []string) (string, error) {
	path := TextPath(dir, title)
	if err := os.WriteFile(path, []byte(ComposeContent(content, attachments)), filePerm); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}
	return path, nil
}

// WriteMetadata writes the page fields as compact JSON with sorted keys.
// The file is replaced.
func (w *Writer) WriteMetadata(dir, title string, metadata map[string]json.RawMessage) (string, error) {
	if metadata == nil {
		metadata = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata for %s: %w", title, err)
	}

	path := MetadataPath(dir, title)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return path, nil
}

// CreateAttachment opens the attachment file for writing, truncating any
// previous content. The caller closes it.
func (w *Writer) CreateAttachment(dir, filename string) (*os.File, error) {
	f, err := os.OpenFile(AttachmentPath(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return f, nil
}

// ComposeContent appends the attachment list to content. Link text and
// target are both the stored file name.
func ComposeContent(content string, attachments []string) string {
	if len(attachments) == 0 {
		return content
	}

	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\r\n\r\nh2. Attachments:")
	for _, name := range attachments {
		fn := safeSegment(name)
		fmt.Fprintf(&b, "\r\n* \"%s\":<%s>", fn, fn)
	}
	return b.String()
}
