// Package gateway serves the proxy's HTTP surface: the guarded
// OpenAI-compatible forward path and the management API for agents,
// tools, policies, chats and the dual-LLM configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Geetk172/archestra/internal/config"
	"github.com/Geetk172/archestra/internal/dualllm"
	"github.com/Geetk172/archestra/internal/observability"
	"github.com/Geetk172/archestra/internal/policy"
	"github.com/Geetk172/archestra/internal/providers"
	"github.com/Geetk172/archestra/internal/storage"
)

// chatIDHeader carries the chat the guarded completion belongs to.
const chatIDHeader = "x-archestra-chat-id"

// Pinger reports storage liveness for /health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server wires the stores, evaluators and providers into the HTTP
// surface.
type Server struct {
	config     *config.Config
	stores     storage.StoreSet
	upstream   providers.Upstream
	sanitizer  *dualllm.Sanitizer
	invocation *policy.InvocationEvaluator
	trust      *policy.TrustEvaluator
	logger     *observability.Logger
	metrics    *observability.Metrics
	pinger     Pinger

	httpServer *http.Server
}

// NewServer builds a server over the given dependencies. pinger and
// metrics may be nil.
func NewServer(cfg *config.Config, stores storage.StoreSet, upstream providers.Upstream, sanitizer *dualllm.Sanitizer, logger *observability.Logger, metrics *observability.Metrics, pinger Pinger) *Server {
	return &Server{
		config:     cfg,
		stores:     stores,
		upstream:   upstream,
		sanitizer:  sanitizer,
		invocation: policy.NewInvocationEvaluator(stores.InvocationPolicies, logger.Slog()),
		trust:      policy.NewTrustEvaluator(stores.TrustedPolicies, logger.Slog()),
		logger:     logger,
		metrics:    metrics,
		pinger:     pinger,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)

	mux.HandleFunc("POST /api/chats", s.handleCreateChat)
	mux.HandleFunc("GET /api/chats", s.handleListChats)
	mux.HandleFunc("GET /api/chats/{id}", s.handleGetChat)

	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)

	mux.HandleFunc("POST /api/agents/{id}/tools", s.handleCreateTool)
	mux.HandleFunc("GET /api/agents/{id}/tools", s.handleListAgentTools)
	mux.HandleFunc("GET /api/tools/{id}", s.handleGetTool)
	mux.HandleFunc("PUT /api/tools/{id}", s.handleUpdateTool)
	mux.HandleFunc("DELETE /api/tools/{id}", s.handleDeleteTool)

	mux.HandleFunc("POST /api/tool-invocation-policies", s.handleCreateInvocationPolicy)
	mux.HandleFunc("GET /api/tool-invocation-policies", s.handleListInvocationPolicies)
	mux.HandleFunc("GET /api/tool-invocation-policies/{id}", s.handleGetInvocationPolicy)
	mux.HandleFunc("PUT /api/tool-invocation-policies/{id}", s.handleUpdateInvocationPolicy)
	mux.HandleFunc("DELETE /api/tool-invocation-policies/{id}", s.handleDeleteInvocationPolicy)

	mux.HandleFunc("POST /api/trusted-data-policies", s.handleCreateTrustedPolicy)
	mux.HandleFunc("GET /api/trusted-data-policies", s.handleListTrustedPolicies)
	mux.HandleFunc("GET /api/trusted-data-policies/{id}", s.handleGetTrustedPolicy)
	mux.HandleFunc("PUT /api/trusted-data-policies/{id}", s.handleUpdateTrustedPolicy)
	mux.HandleFunc("DELETE /api/trusted-data-policies/{id}", s.handleDeleteTrustedPolicy)

	mux.HandleFunc("POST /api/agents/{id}/tool-invocation-policies/{policyID}", s.handleAssignInvocationPolicy)
	mux.HandleFunc("DELETE /api/agents/{id}/tool-invocation-policies/{policyID}", s.handleUnassignInvocationPolicy)
	mux.HandleFunc("GET /api/agents/{id}/tool-invocation-policies", s.handleListAgentInvocationPolicies)
	mux.HandleFunc("POST /api/agents/{id}/trusted-data-policies/{policyID}", s.handleAssignTrustedPolicy)
	mux.HandleFunc("DELETE /api/agents/{id}/trusted-data-policies/{policyID}", s.handleUnassignTrustedPolicy)
	mux.HandleFunc("GET /api/agents/{id}/trusted-data-policies", s.handleListAgentTrustedPolicies)

	mux.HandleFunc("GET /api/dual-llm-config", s.handleGetDualLLMConfig)
	mux.HandleFunc("PUT /api/dual-llm-config", s.handleUpdateDualLLMConfig)

	mux.HandleFunc("POST /v1/{provider}/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/{provider}/models", s.handleListModels)

	return s.withMiddleware(mux)
}

// Start runs the HTTP listener until the context is cancelled, then
// drains with the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.PingContext(pingCtx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}
