package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Geetk172/archestra/internal/dualllm"
	"github.com/Geetk172/archestra/internal/observability"
	"github.com/Geetk172/archestra/internal/providers"
	"github.com/Geetk172/archestra/internal/storage"
	"github.com/Geetk172/archestra/pkg/models"
)

// unknownToolReason taints tool results whose provenance cannot be
// resolved from the conversation or the tool registry. Such results
// pass through unsanitised; there is no agent scope to evaluate
// policies under.
const unknownToolReason = "unknown tool for result"

// blockedContentFormat replaces a blocked tool result before forwarding.
const blockedContentFormat = "[Content blocked by policy: %s]"

// completionRequest is the decoded guarded-completion body. Fields the
// pipeline does not touch round-trip through Extra untouched.
type completionRequest struct {
	Messages []json.RawMessage
	Stream   bool
	Extra    map[string]json.RawMessage
}

func decodeCompletionRequest(r *http.Request) (*completionRequest, error) {
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}
	req := &completionRequest{Extra: body}
	if raw, ok := body["messages"]; ok {
		if err := json.Unmarshal(raw, &req.Messages); err != nil {
			return nil, err
		}
	}
	if raw, ok := body["stream"]; ok {
		if err := json.Unmarshal(raw, &req.Stream); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// upstreamRequest rebuilds the possibly-rewritten body into the typed
// upstream request.
func (req *completionRequest) upstreamRequest() (openai.ChatCompletionRequest, error) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	req.Extra["messages"] = messages
	full, err := json.Marshal(req.Extra)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	var out openai.ChatCompletionRequest
	if err := json.Unmarshal(full, &out); err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	return out, nil
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	shape, err := dualllm.ParseShape(r.PathValue("provider"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, err.Error())
		return
	}

	chatID := r.Header.Get(chatIDHeader)
	if chatID == "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "missing "+chatIDHeader+" header")
		return
	}
	if _, err := s.stores.Chats.Get(r.Context(), chatID); err != nil {
		writeStoreError(w, err)
		return
	}
	// Downstream log records pick the chat ID up from the context.
	r = r.WithContext(observability.AddChatID(r.Context(), chatID))

	req, err := decodeCompletionRequest(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}

	if err := s.scanInboundMessages(r, shape, chatID, req); err != nil {
		s.logger.Error(r.Context(), "Inbound scan failed", "error", err)
		s.writePipelineError(w, err)
		return
	}

	if err := s.persistLastUserMessage(r, chatID, req, shape); err != nil {
		s.logger.Error(r.Context(), "Persist user message failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
		return
	}

	upstreamReq, err := req.upstreamRequest()
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}

	if req.Stream {
		s.streamCompletion(w, r, chatID, upstreamReq)
		return
	}
	s.forwardCompletion(w, r, chatID, upstreamReq)
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, providers.ErrNotConfigured) {
		writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeConfiguration, err.Error())
		return
	}
	writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
}

// toolResultRef locates one inbound tool result inside the request.
type toolResultRef struct {
	messageIndex int
	// blockIndex is the tool_result block offset for the anthropic
	// shape; -1 for the openai shape, where the whole message is the
	// result.
	blockIndex int
	anchor     string
	content    string
}

// scanInboundMessages applies the trusted-data guardrail to every tool
// result in the request, rewriting blocked or sanitised content in
// place and persisting the originals as (possibly tainted)
// interactions.
func (s *Server) scanInboundMessages(r *http.Request, shape dualllm.Shape, chatID string, req *completionRequest) error {
	ctx := r.Context()
	refs, err := findToolResults(shape, req.Messages)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		original := req.Messages[ref.messageIndex]
		toolName := resolveToolName(shape, req.Messages, ref.anchor)

		tainted := true
		reason := unknownToolReason
		replacement := ""
		replace := false

		if toolName != "" {
			tool, err := s.stores.Tools.GetByName(ctx, toolName)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// Tool name resolved from the conversation but never
				// registered: no agent scope, same unknown treatment.
			case err != nil:
				return fmt.Errorf("resolve tool %q: %w", toolName, err)
			default:
				decision, err := s.evaluateTrust(r, shape, chatID, req, ref, tool)
				if err != nil {
					return err
				}
				tainted = !decision.trusted
				reason = decision.reason
				replacement = decision.replacement
				replace = decision.replace
			}
		}
		s.countScan(toolName, tainted, toolName == "")

		if replace {
			rewritten, err := rewriteToolResult(shape, req.Messages[ref.messageIndex], ref, replacement)
			if err != nil {
				return fmt.Errorf("rewrite tool result: %w", err)
			}
			req.Messages[ref.messageIndex] = rewritten
		}

		interaction := &models.Interaction{
			ID:        uuid.NewString(),
			ChatID:    chatID,
			Content:   original,
			Tainted:   tainted,
			CreatedAt: time.Now().UTC(),
		}
		if tainted {
			interaction.TaintReason = reason
		}
		if err := s.stores.Chats.AppendInteraction(ctx, interaction); err != nil {
			return fmt.Errorf("persist tool interaction: %w", err)
		}
	}
	return nil
}

type trustOutcome struct {
	trusted     bool
	reason      string
	replacement string
	replace     bool
}

func (s *Server) evaluateTrust(r *http.Request, shape dualllm.Shape, chatID string, req *completionRequest, ref toolResultRef, tool *models.Tool) (trustOutcome, error) {
	ctx := r.Context()

	var result any
	if err := json.Unmarshal([]byte(ref.content), &result); err != nil {
		result = ref.content
	}

	decision, err := s.trust.Evaluate(ctx, tool.AgentID, tool.Name, result)
	if err != nil {
		return trustOutcome{}, err
	}

	switch {
	case decision.Blocked:
		return trustOutcome{
			trusted:     false,
			reason:      decision.Reason,
			replacement: fmt.Sprintf(blockedContentFormat, decision.Reason),
			replace:     true,
		}, nil
	case decision.SanitizeWithDualLLM:
		summary, err := s.sanitizer.Sanitize(ctx, dualllm.Request{
			Shape:    shape,
			Messages: req.Messages,
			Anchor:   ref.anchor,
			AgentID:  tool.AgentID,
		})
		if err != nil {
			return trustOutcome{}, fmt.Errorf("dual llm sanitise: %w", err)
		}
		return trustOutcome{
			trusted:     false,
			reason:      decision.Reason,
			replacement: summary,
			replace:     true,
		}, nil
	}
	return trustOutcome{trusted: true, reason: decision.Reason}, nil
}

func (s *Server) countScan(toolName string, tainted, unknown bool) {
	if s.metrics == nil {
		return
	}
	outcome := "trusted"
	switch {
	case unknown:
		outcome = "unknown"
	case tainted:
		outcome = "untrusted"
	}
	label := toolName
	if label == "" {
		label = "unknown"
	}
	s.metrics.ToolResultsScanned.WithLabelValues(label, outcome).Inc()
}

// persistLastUserMessage stores the final user turn (if any) as an
// untainted interaction, after the tool results and before the
// assistant reply.
func (s *Server) persistLastUserMessage(r *http.Request, chatID string, req *completionRequest, shape dualllm.Shape) error {
	idx := -1
	for i, raw := range req.Messages {
		var msg struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Role != "user" {
			continue
		}
		// Anthropic-shaped user turns that only carry tool results are
		// not user messages.
		if shape == dualllm.ShapeAnthropic && isToolResultOnly(msg.Content) {
			continue
		}
		idx = i
	}
	if idx < 0 {
		return nil
	}
	return s.stores.Chats.AppendInteraction(r.Context(), &models.Interaction{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Content:   req.Messages[idx],
		CreatedAt: time.Now().UTC(),
	})
}

// forwardCompletion relays a non-streaming request and gates proposed
// tool calls on the way back.
func (s *Server) forwardCompletion(w http.ResponseWriter, r *http.Request, chatID string, req openai.ChatCompletionRequest) {
	ctx := r.Context()
	resp, err := s.upstream.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeConfiguration, err.Error())
			return
		}
		s.logger.Error(ctx, "Upstream completion failed", "error", err)
		writeAPIError(w, http.StatusBadGateway, models.ErrorTypeAPI, "upstream error")
		return
	}

	if len(resp.Choices) > 0 {
		message := resp.Choices[0].Message
		decision, err := s.gateToolCalls(r, message.ToolCalls)
		if err != nil {
			s.logger.Error(ctx, "Tool call gate failed", "error", err)
			writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
			return
		}
		if !decision.Allowed {
			writeAPIError(w, http.StatusForbidden, models.ErrorTypeToolInvocationBlocked, decision.DenyReason)
			return
		}
		if err := s.persistAssistantMessage(ctx, chatID, message); err != nil {
			s.logger.Error(ctx, "Persist assistant message failed", "error", err)
			writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// gateToolCalls applies the invocation guardrail to each proposed call
// in order; the first denial wins.
func (s *Server) gateToolCalls(r *http.Request, toolCalls []openai.ToolCall) (policyDecision, error) {
	ctx := r.Context()
	for _, tc := range toolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		name := tc.Function.Name

		// Malformed arguments are gated as an empty argument set:
		// allow policies then fail closed on their missing arguments.
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}

		tool, err := s.stores.Tools.GetByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			// Unregistered tools have no applicable policies.
			s.countGate(name, true)
			continue
		}
		if err != nil {
			return policyDecision{}, fmt.Errorf("resolve tool %q: %w", name, err)
		}

		decision, err := s.invocation.Evaluate(ctx, tool.AgentID, name, args)
		if err != nil {
			return policyDecision{}, err
		}
		s.countGate(name, decision.Allowed)
		if !decision.Allowed {
			s.logger.Warn(ctx, "Tool call blocked",
				"tool", name, "reason", decision.DenyReason)
			return policyDecision{Allowed: false, DenyReason: decision.DenyReason}, nil
		}
	}
	return policyDecision{Allowed: true}, nil
}

type policyDecision struct {
	Allowed    bool
	DenyReason string
}

func (s *Server) countGate(toolName string, allowed bool) {
	if s.metrics == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "blocked"
	}
	s.metrics.ToolCallsEvaluated.WithLabelValues(toolName, decision).Inc()
}

func (s *Server) persistAssistantMessage(ctx context.Context, chatID string, message openai.ChatCompletionMessage) error {
	content, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.stores.Chats.AppendInteraction(ctx, &models.Interaction{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if _, err := dualllm.ParseShape(r.PathValue("provider")); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, err.Error())
		return
	}
	list, err := s.upstream.ListModels(r.Context())
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeConfiguration, err.Error())
			return
		}
		writeAPIError(w, http.StatusBadGateway, models.ErrorTypeAPI, "upstream error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
