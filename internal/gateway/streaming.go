package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Geetk172/archestra/internal/providers"
	"github.com/Geetk172/archestra/pkg/models"
)

// streamCompletion relays upstream SSE chunks verbatim while buffering
// tool-call deltas. The invocation gate runs after the stream
// completes; a block is surfaced as a final error event before [DONE],
// since the 200 status is already on the wire.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, chatID string, req openai.ChatCompletionRequest) {
	ctx := r.Context()

	stream, err := s.upstream.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeConfiguration, err.Error())
			return
		}
		s.logger.Error(ctx, "Upstream stream failed", "error", err)
		writeAPIError(w, http.StatusBadGateway, models.ErrorTypeAPI, "upstream error")
		return
	}
	defer stream.Close()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	acc := newToolCallAccumulator()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Client disconnects cancel the upstream stream via ctx.
			if ctx.Err() != nil {
				return
			}
			s.logger.Error(ctx, "Stream receive failed", "error", err)
			s.writeSSEError(w, flusher, models.ErrorTypeAPI, "upstream stream error")
			s.writeSSEDone(w, flusher)
			return
		}

		acc.observe(chunk)

		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	message := acc.message()
	decision, err := s.gateToolCalls(r, message.ToolCalls)
	if err != nil {
		s.logger.Error(ctx, "Tool call gate failed", "error", err)
		s.writeSSEError(w, flusher, models.ErrorTypeAPI, "internal error")
		s.writeSSEDone(w, flusher)
		return
	}
	if !decision.Allowed {
		s.writeSSEError(w, flusher, models.ErrorTypeToolInvocationBlocked, decision.DenyReason)
		s.writeSSEDone(w, flusher)
		return
	}

	if err := s.persistAssistantMessage(ctx, chatID, message); err != nil {
		s.logger.Error(ctx, "Persist assistant message failed", "error", err)
	}
	s.writeSSEDone(w, flusher)
}

func (s *Server) writeSSEError(w http.ResponseWriter, flusher http.Flusher, errType models.ErrorType, message string) {
	data, err := json.Marshal(models.NewAPIError(errType, message))
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) writeSSEDone(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// toolCallAccumulator reassembles tool calls and assistant text from
// stream deltas. Deltas address calls by index; arguments arrive as
// string fragments to concatenate.
type toolCallAccumulator struct {
	content string
	role    string
	calls   map[int]*openai.ToolCall
	order   []int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*openai.ToolCall)}
}

func (a *toolCallAccumulator) observe(chunk openai.ChatCompletionStreamResponse) {
	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta
	if delta.Role != "" {
		a.role = delta.Role
	}
	a.content += delta.Content

	for _, tc := range delta.ToolCalls {
		index := 0
		if tc.Index != nil {
			index = *tc.Index
		}
		call, ok := a.calls[index]
		if !ok {
			call = &openai.ToolCall{}
			a.calls[index] = call
			a.order = append(a.order, index)
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Type != "" {
			call.Type = tc.Type
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
}

// message returns the reassembled assistant message.
func (a *toolCallAccumulator) message() openai.ChatCompletionMessage {
	role := a.role
	if role == "" {
		role = openai.ChatMessageRoleAssistant
	}
	msg := openai.ChatCompletionMessage{Role: role, Content: a.content}
	for _, index := range a.order {
		msg.ToolCalls = append(msg.ToolCalls, *a.calls[index])
	}
	return msg
}
