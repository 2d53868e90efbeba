// Package base provides the shared HTTP client used to talk to Redmine.
package base

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	apierrors "github.com/olgasafonova/redmine-wiki-exporter/internal/errors"
	"github.com/olgasafonova/redmine-wiki-exporter/metrics"
	"github.com/olgasafonova/redmine-wiki-exporter/tracing"
)

const (
	// DefaultTimeout bounds connecting and waiting for response headers.
	// Bodies are streamed without a deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the exporter to the server
	DefaultUserAgent = "redmine-wiki-exporter/1.0"

	// maxErrorBody caps how much of an error response ends up in an error message
	maxErrorBody = 200
)

// Client performs authenticated GET requests. It never retries: a transport
// failure is returned to the caller as is.
type Client struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
	username   string
	password   string
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithTimeout replaces the HTTP client with one whose dial and
// response-header timeouts are d
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.HTTPClient = newHTTPClient(d)
	}
}

// WithUserAgent sets the User-Agent header value
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		if ua != "" {
			client.UserAgent = ua
		}
	}
}

// WithBasicAuth sets HTTP Basic credentials sent with every request
func WithBasicAuth(username, password string) ClientOption {
	return func(client *Client) {
		client.username = username
		client.password = password
	}
}

// NewClient creates a new base client with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		HTTPClient: newHTTPClient(DefaultTimeout),
		Logger:     slog.Default(),
		UserAgent:  DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	URL string

	// Endpoint labels metrics and spans ("projects", "wiki_index", ...)
	Endpoint string

	// Accept overrides the Accept header; defaults to application/json
	Accept string

	// ForbiddenIsAuth turns a 403 into *errors.AuthError. Redmine also
	// answers 403 for a disabled module or a missing permission, so only
	// requests every user may make should set it.
	ForbiddenIsAuth bool
}

// DoRequest performs a GET and returns the body of a 2xx response.
// 401 becomes *errors.AuthError, as does 403 when cfg.ForbiddenIsAuth is
// set. Any other non-2xx status becomes *errors.StatusError.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) ([]byte, error) {
	resp, err := c.do(ctx, cfg)
	if err != nil {
		return nil, err
	}

	body, err := readAndClose(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// Download performs a GET and streams a 2xx response body into w.
// It returns the number of bytes copied.
func (c *Client) Download(ctx context.Context, cfg RequestConfig, w io.Writer) (int64, error) {
	if cfg.Accept == "" {
		cfg.Accept = "*/*"
	}

	resp, err := c.do(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to copy response body: %w", err)
	}
	return n, nil
}

// do sends the request and classifies the status. On success the caller
// owns the response body.
func (c *Client) do(ctx context.Context, cfg RequestConfig) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "redmine."+cfg.Endpoint)
	defer span.End()
	tracing.AddRedmineAttributes(span, cfg.Endpoint, "")

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	accept := cfg.Accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.UserAgent)
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.Logger.Debug("Redmine request", "endpoint", cfg.Endpoint, "url", cfg.URL)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(cfg.Endpoint, time.Since(start).Seconds(), false, "transport")
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.RecordAPICall(cfg.Endpoint, time.Since(start).Seconds(), true, "")
		return resp, nil
	}

	body, _ := readAndClose(resp)
	duration := time.Since(start).Seconds()

	if isAuthStatus(resp.StatusCode, cfg.ForbiddenIsAuth) {
		metrics.RecordAPICall(cfg.Endpoint, duration, false, "auth")
		authErr := &apierrors.AuthError{URL: cfg.URL, StatusCode: resp.StatusCode}
		tracing.RecordError(span, authErr)
		return nil, authErr
	}

	metrics.RecordAPICall(cfg.Endpoint, duration, false, fmt.Sprintf("status_%d", resp.StatusCode))
	statusErr := &apierrors.StatusError{
		URL:        cfg.URL,
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), maxErrorBody),
	}
	tracing.RecordError(span, statusErr)
	return nil, statusErr
}

func isAuthStatus(status int, forbiddenIsAuth bool) bool {
	return status == http.StatusUnauthorized ||
		(forbiddenIsAuth && status == http.StatusForbidden)
}

// readAndClose reads the response body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return body, err
}

// truncate shortens a string to at most maxLen bytes without splitting a
// rune, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return TruncateUTF8(s, maxLen) + "..."
}

// TruncateUTF8 cuts s to at most n bytes, backing off to a rune boundary
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// newHTTPClient creates an HTTP client with optimized transport settings.
// There is no overall Client.Timeout: it would also cut off large
// attachment bodies that are still streaming.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
	}
}
