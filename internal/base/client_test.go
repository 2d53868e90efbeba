package base

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	apierrors "github.com/olgasafonova/redmine-wiki-exporter/internal/errors"
)

func TestNewClient(t *testing.T) {
	client := NewClient()
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil")
	}
	if client.Logger == nil {
		t.Error("Logger is nil")
	}
	if client.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", client.UserAgent, DefaultUserAgent)
	}
}

func TestNewClientWithOptions(t *testing.T) {
	customHTTP := &http.Client{Timeout: 60 * time.Second}
	customLogger := slog.Default()

	client := NewClient(
		WithHTTPClient(customHTTP),
		WithLogger(customLogger),
		WithUserAgent("custom-agent/1.0"),
	)

	if client.HTTPClient != customHTTP {
		t.Error("custom HTTP client was not set")
	}
	if client.Logger != customLogger {
		t.Error("custom logger was not set")
	}
	if client.UserAgent != "custom-agent/1.0" {
		t.Errorf("UserAgent = %q, want 'custom-agent/1.0'", client.UserAgent)
	}
}

func TestWithUserAgent_EmptyKeepsDefault(t *testing.T) {
	client := NewClient(WithUserAgent(""))
	if client.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", client.UserAgent, DefaultUserAgent)
	}
}

func TestClient_DefaultTimeout(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		want   time.Duration
	}{
		{"default", NewClient(), DefaultTimeout},
		{"custom", NewClient(WithTimeout(5 * time.Second)), 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.client.HTTPClient.Timeout != 0 {
				t.Errorf("overall timeout = %v, want none", tt.client.HTTPClient.Timeout)
			}
			transport, ok := tt.client.HTTPClient.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("transport = %T, want *http.Transport", tt.client.HTTPClient.Transport)
			}
			if transport.ResponseHeaderTimeout != tt.want {
				t.Errorf("ResponseHeaderTimeout = %v, want %v", transport.ResponseHeaderTimeout, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"longer than max length", 10, "longer tha..."},
		{"", 5, ""},
		{"abc", 0, "..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"ascii", 3, "asc"},
		{"ascii", 10, "ascii"},
		{"日本語", 3, "日"},
		{"日本語", 5, "日"},
		{"日本語", 2, ""},
		{"aé", 2, "a"},
	}

	for _, tt := range tests {
		got := TruncateUTF8(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("TruncateUTF8(%q, %d) split a rune: %q", tt.input, tt.n, got)
		}
	}
}

func TestReadAndClose(t *testing.T) {
	t.Run("normal response", func(t *testing.T) {
		resp := &http.Response{Body: io.NopCloser(strings.NewReader("test response body"))}

		data, err := readAndClose(resp)
		if err != nil {
			t.Fatalf("readAndClose failed: %v", err)
		}
		if string(data) != "test response body" {
			t.Errorf("got %q, want 'test response body'", string(data))
		}
	})

	t.Run("empty response", func(t *testing.T) {
		resp := &http.Response{Body: io.NopCloser(strings.NewReader(""))}

		data, err := readAndClose(resp)
		if err != nil {
			t.Fatalf("readAndClose failed: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty data, got %d bytes", len(data))
		}
	})
}

func TestDoRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Error("Accept header not set")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient()

	body, err := client.DoRequest(context.Background(), RequestConfig{
		URL:      server.URL,
		Endpoint: "test",
	})
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want '{\"status\":\"ok\"}'", string(body))
	}
}

func TestDoRequest_BasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithBasicAuth("alice", "s3cret"))

	if _, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"}); err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if !gotOK || gotUser != "alice" || gotPass != "s3cret" {
		t.Errorf("basic auth = (%q, %q, %v), want (alice, s3cret, true)", gotUser, gotPass, gotOK)
	}
}

func TestDoRequest_NoCredentialsNoAuthHeader(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"}); err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	if header != "" {
		t.Errorf("Authorization = %q, want empty", header)
	}
}

func TestDoRequest_DefaultUserAgent(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, _ = NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"})

	if receivedUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", receivedUA, DefaultUserAgent)
	}
}

func TestDoRequest_AuthFailure(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		forbiddenIsAuth bool
		wantAuth        bool
	}{
		{"401", http.StatusUnauthorized, false, true},
		{"401 on credential check", http.StatusUnauthorized, true, true},
		{"403 on credential check", http.StatusForbidden, true, true},
		{"403 on project resource", http.StatusForbidden, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewClient().DoRequest(context.Background(), RequestConfig{
				URL:             server.URL,
				Endpoint:        "test",
				ForbiddenIsAuth: tt.forbiddenIsAuth,
			})
			if apierrors.IsAuth(err) != tt.wantAuth {
				t.Errorf("IsAuth = %v, want %v (err %v)", apierrors.IsAuth(err), tt.wantAuth, err)
			}
			if !tt.wantAuth && !apierrors.IsUnusableResponse(err) {
				t.Errorf("expected an unusable response, got %v", err)
			}
		})
	}
}

func TestDoRequest_StatusErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer server.Close()

	_, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"})

	var statusErr *apierrors.StatusError
	if !asStatus(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", statusErr.StatusCode)
	}
	if statusErr.Body != "internal error" {
		t.Errorf("body = %q, want 'internal error'", statusErr.Body)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestDoRequest_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"})
	if !apierrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDoRequest_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: url, Endpoint: "test"})
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if apierrors.IsUnusableResponse(err) || apierrors.IsAuth(err) {
		t.Errorf("transport failure misclassified: %v", err)
	}
}

func TestDoRequest_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient().DoRequest(ctx, RequestConfig{URL: server.URL, Endpoint: "test"}); err == nil {
		t.Error("expected error when context is canceled")
	}
}

func TestDownload(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := NewClient().Download(context.Background(), RequestConfig{URL: server.URL, Endpoint: "attachment"}, &buf)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("n = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("payload = %v, want %v", buf.Bytes(), payload)
	}
	if accept != "*/*" {
		t.Errorf("Accept = %q, want */*", accept)
	}
}

func TestDownload_SlowBodyOutlivesTimeout(t *testing.T) {
	chunk := strings.Repeat("x", 25)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}))
	defer server.Close()

	client := NewClient(WithTimeout(150 * time.Millisecond))

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), RequestConfig{URL: server.URL, Endpoint: "attachment"}, &buf)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != 100 || buf.Len() != 100 {
		t.Errorf("n = %d, buffered %d, want 100", n, buf.Len())
	}
}

func TestDoRequest_HeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))

	_, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL, Endpoint: "test"})
	if err == nil {
		t.Fatal("expected an error when headers arrive after the timeout")
	}
	if apierrors.IsUnusableResponse(err) || apierrors.IsAuth(err) {
		t.Errorf("header timeout misclassified: %v", err)
	}
}

func TestDownload_StatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	var buf bytes.Buffer
	_, err := NewClient().Download(context.Background(), RequestConfig{URL: server.URL, Endpoint: "attachment"}, &buf)
	if !apierrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on error, got %d bytes", buf.Len())
	}
}

func asStatus(err error, target **apierrors.StatusError) bool {
	se, ok := err.(*apierrors.StatusError)
	if ok {
		*target = se
	}
	return ok
}
