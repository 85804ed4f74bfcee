package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Geetk172/archestra/internal/observability"
	"github.com/Geetk172/archestra/pkg/models"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE relaying keeps working
// through the middleware chain.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withMiddleware wraps a handler with request-id assignment, panic
// recovery, request logging and HTTP metrics.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := observability.AddRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if rv := recover(); rv != nil {
				s.logger.Error(ctx, "Handler panic", "panic", rv, "path", r.URL.Path)
				writeAPIError(rec, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
			}
			duration := time.Since(start)
			if s.metrics != nil {
				s.metrics.HTTPRequestCounter.WithLabelValues(r.Method, r.URL.Path, httpStatusLabel(rec.status)).Inc()
				s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, httpStatusLabel(rec.status)).Observe(duration.Seconds())
			}
			s.logger.Info(ctx, "Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
