// Package metrics provides Prometheus metrics for the Redmine wiki exporter.
// It tracks Redmine API calls, export progress, and MCP tool usage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "redmine_wiki_exporter"
)

var (
	// APIRequestsTotal counts Redmine API requests by endpoint and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total Redmine API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// APILatency measures Redmine API call latency by endpoint
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_latency_seconds",
		Help:      "Redmine API call latency by endpoint",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// APIErrors counts Redmine API errors by endpoint and error kind
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_errors_total",
		Help:      "Redmine API errors by endpoint and error kind",
	}, []string{"endpoint", "kind"})

	// DecodeFailures counts responses replaced by an empty result
	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "decode_failures_total",
		Help:      "Unusable API responses substituted with an empty result",
	}, []string{"endpoint"})

	// ProjectsTotal counts processed projects by outcome
	ProjectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "projects_total",
		Help:      "Projects processed by outcome (exported, skipped, failed)",
	}, []string{"outcome"})

	// PagesExported counts wiki pages written to disk
	PagesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pages_exported_total",
		Help:      "Wiki pages written to disk",
	})

	// PagesSkipped counts wiki pages that could not be fetched
	PagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pages_skipped_total",
		Help:      "Wiki pages skipped because their content was unusable",
	})

	// HierarchyFallbacks counts pages whose parent reference was missing
	HierarchyFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "hierarchy_fallbacks_total",
		Help:      "Pages placed at the root because their parent page is missing",
	})

	// AttachmentsDownloaded counts attachment files written
	AttachmentsDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "attachments_downloaded_total",
		Help:      "Attachment files downloaded",
	})

	// AttachmentBytes counts attachment bytes written
	AttachmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "attachment_bytes_total",
		Help:      "Attachment bytes downloaded",
	})

	// ContentSize tracks page content sizes
	ContentSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Wiki page content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	})

	// RequestsTotal counts MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tool_requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures MCP tool latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tool_request_duration_seconds",
		Help:      "MCP tool latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"tool"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})
)

// RecordRequest records a completed MCP tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records a Redmine API call
func RecordAPICall(endpoint string, duration float64, success bool, errorKind string) {
	APIRequestsTotal.WithLabelValues(endpoint, statusLabel(success)).Inc()
	APILatency.WithLabelValues(endpoint).Observe(duration)
	if errorKind != "" {
		APIErrors.WithLabelValues(endpoint, errorKind).Inc()
	}
}

// RecordProject records the outcome of one project export
func RecordProject(outcome string) {
	ProjectsTotal.WithLabelValues(outcome).Inc()
}

// RecordAttachment records one downloaded attachment
func RecordAttachment(size int64) {
	AttachmentsDownloaded.Inc()
	AttachmentBytes.Add(float64(size))
}

// WriteTextfile dumps the default registry in the text exposition format,
// suitable for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
