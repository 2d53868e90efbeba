package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olgasafonova/redmine-wiki-exporter/internal/base"
	apierrors "github.com/olgasafonova/redmine-wiki-exporter/internal/errors"
)

const (
	// PageSize is the limit sent when listing projects. Redmine caps it at 100.
	PageSize = 100

	// Endpoint labels for metrics and spans
	EndpointProjects   = "projects"
	EndpointWikiIndex  = "wiki_index"
	EndpointWikiPage   = "wiki_page"
	EndpointAttachment = "attachment"
)

// Client is a Redmine REST API client
type Client struct {
	*base.Client
	baseURL string
}

// ClientOption configures the Client (re-export base.ClientOption for compatibility)
type ClientOption = base.ClientOption

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return base.WithHTTPClient(c)
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return base.WithLogger(l)
}

// WithTimeout sets the HTTP timeout
func WithTimeout(d time.Duration) ClientOption {
	return base.WithTimeout(d)
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return base.WithUserAgent(ua)
}

// WithBasicAuth sets the credentials sent with every request
func WithBasicAuth(username, password string) ClientOption {
	return base.WithBasicAuth(username, password)
}

// NewClient creates a client for the Redmine instance whose API root is
// baseURL. Endpoint paths are appended to it, so it should end in "/".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		Client:  base.NewClient(opts...),
		baseURL: baseURL,
	}
}

// BaseURL returns the API root requests are made against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProjects returns every project visible to the configured user. It pages
// with offset until the server reports no more results. On error the
// projects collected from earlier pages are returned alongside it.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	offset := 0

	for {
		reqURL := fmt.Sprintf("%sprojects.json?limit=%d&offset=%d", c.baseURL, PageSize, offset)

		// The project list is open to every user, so a 403 here means the
		// credentials themselves were refused.
		var page ProjectListResponse
		if err := c.getJSON(ctx, base.RequestConfig{
			URL:             reqURL,
			Endpoint:        EndpointProjects,
			ForbiddenIsAuth: true,
		}, &page); err != nil {
			return projects, err
		}
		if len(page.Projects) == 0 {
			break
		}

		projects = append(projects, page.Projects...)
		offset += len(page.Projects)

		if page.TotalCount > 0 {
			if offset >= page.TotalCount {
				break
			}
		} else if len(page.Projects) < PageSize {
			break
		}
	}

	c.Logger.Debug("Listed projects", "count", len(projects))
	return projects, nil
}

// ListWikiPages returns the wiki index of a project: every page title with
// its parent reference. A project without a wiki yields *errors.NotFoundError.
func (c *Client) ListWikiPages(ctx context.Context, identifier string) ([]WikiPageRef, error) {
	reqURL := fmt.Sprintf("%sprojects/%s/wiki/index.json", c.baseURL, url.PathEscape(identifier))

	var index WikiIndexResponse
	if err := c.getJSON(ctx, base.RequestConfig{URL: reqURL, Endpoint: EndpointWikiIndex}, &index); err != nil {
		return nil, notFoundAs(err, "wiki", identifier)
	}
	return index.WikiPages, nil
}

// GetWikiPage fetches one page with its content and attachment list.
func (c *Client) GetWikiPage(ctx context.Context, identifier, title string) (*WikiPage, error) {
	reqURL := fmt.Sprintf("%sprojects/%s/wiki/%s.json?include=attachments",
		c.baseURL, url.PathEscape(identifier), url.PathEscape(title))

	var envelope struct {
		WikiPage json.RawMessage `json:"wiki_page"`
	}
	if err := c.getJSON(ctx, base.RequestConfig{URL: reqURL, Endpoint: EndpointWikiPage}, &envelope); err != nil {
		return nil, notFoundAs(err, "wiki_page", identifier+"/"+title)
	}

	page, err := decodeWikiPage(envelope.WikiPage)
	if err != nil {
		return nil, &apierrors.DecodeError{URL: reqURL, Err: err}
	}
	return page, nil
}

// DownloadAttachment streams an attachment's content into w and returns the
// number of bytes written.
func (c *Client) DownloadAttachment(ctx context.Context, attachment Attachment, w io.Writer) (int64, error) {
	if attachment.ContentURL == "" {
		return 0, apierrors.NewValidationError("content_url", "", "attachment has no content URL")
	}

	target, err := c.resolve(attachment.ContentURL)
	if err != nil {
		return 0, err
	}

	return c.Client.Download(ctx, base.RequestConfig{
		URL:      target,
		Endpoint: EndpointAttachment,
	}, w)
}

// getJSON performs a GET and decodes the body into v. A body that is not
// valid JSON yields *errors.DecodeError.
func (c *Client) getJSON(ctx context.Context, cfg base.RequestConfig, v any) error {
	body, err := c.Client.DoRequest(ctx, cfg)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &apierrors.DecodeError{URL: cfg.URL, Err: err}
	}
	return nil
}

// notFoundAs names the missing entity when the server answered 404
func notFoundAs(err error, entityType, identifier string) error {
	if apierrors.IsNotFound(err) {
		return apierrors.NewNotFoundError(entityType, identifier)
	}
	return err
}

// resolve turns a content URL into an absolute URL. Redmine normally sends
// absolute URLs but relative ones are resolved against the API root.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", apierrors.NewValidationError("content_url", ref, err.Error())
	}
	if u.IsAbs() {
		return ref, nil
	}

	root, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	return root.ResolveReference(u).String(), nil
}

var errMissingWikiPage = errors.New(`response has no "wiki_page" object`)

// decodeWikiPage decodes the typed view and the raw metadata of a page.
func decodeWikiPage(raw json.RawMessage) (*WikiPage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errMissingWikiPage
	}

	var page WikiPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "text")
	page.Metadata = fields

	return &page, nil
}
