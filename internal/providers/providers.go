// Package providers wraps the upstream LLM SDKs behind two small
// surfaces: Upstream, the OpenAI-compatible forward path the proxy
// relays client traffic through, and Completer, the deterministic
// completion interface the dual-LLM sub-agent runs its privileged and
// quarantined sessions on.
package providers

import (
	"context"
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when a provider is called without an
// API key. Startup tolerates a missing key; the first call does not.
var ErrNotConfigured = errors.New("provider API key is not configured")

// Role values for dual-LLM session messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a provider-neutral chat turn used by the dual-LLM
// sessions. Tool calls never appear here; the sub-agent speaks plain
// text plus one schema-constrained reply.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer runs temperature-zero completions for dual-LLM sessions.
type Completer interface {
	// Name returns the stable lowercase provider identifier.
	Name() string

	// Complete sends the conversation and returns the assistant text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteStructured forces the reply to conform to the given JSON
	// schema and returns the raw JSON text of the reply.
	CompleteStructured(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage) (string, error)
}

// CompletionStream yields upstream streaming chunks until io.EOF.
type CompletionStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Upstream is the typed client the proxy forwards guarded traffic to.
// The public surface stays OpenAI-compatible, so the request and
// response shapes are the SDK's own.
type Upstream interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (CompletionStream, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}
