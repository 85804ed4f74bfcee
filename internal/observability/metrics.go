package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the proxy. All metrics are
// registered with the given registerer and exposed via /metrics.
type Metrics struct {
	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP request latency in seconds.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts upstream LLM requests.
	// Labels: provider (openai|anthropic), model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures upstream LLM call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// ToolCallsEvaluated counts tool calls checked against invocation
	// policies. Labels: tool_name, decision (allowed|blocked)
	ToolCallsEvaluated *prometheus.CounterVec

	// ToolResultsScanned counts tool results checked against trusted
	// data policies. Labels: tool_name, outcome (trusted|untrusted|unknown)
	ToolResultsScanned *prometheus.CounterVec

	// SanitizationCounter counts dual-LLM sanitisations.
	// Labels: source (cache|fresh), status (success|error)
	SanitizationCounter *prometheus.CounterVec

	// SanitizationRounds measures question rounds per quarantine session.
	SanitizationRounds prometheus.Histogram

	// DatabaseQueryDuration measures database query latency in seconds.
	// Labels: operation (select|insert|update|delete), table
	DatabaseQueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics against the
// default registry. Call once at application startup.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics against a specific registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archestra_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archestra_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path", "status_code"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archestra_llm_requests_total",
				Help: "Total number of upstream LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archestra_llm_request_duration_seconds",
				Help:    "Duration of upstream LLM requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ToolCallsEvaluated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archestra_tool_calls_evaluated_total",
				Help: "Tool calls checked against invocation policies by tool name and decision",
			},
			[]string{"tool_name", "decision"},
		),

		ToolResultsScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archestra_tool_results_scanned_total",
				Help: "Tool results checked against trusted data policies by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		SanitizationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archestra_sanitizations_total",
				Help: "Dual-LLM sanitisations by source (cache or fresh) and status",
			},
			[]string{"source", "status"},
		),

		SanitizationRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archestra_sanitization_rounds",
				Help:    "Question rounds used per dual-LLM quarantine session",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),

		DatabaseQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archestra_db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "table"},
		),
	}
}
