package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Geetk172/archestra/internal/config"
)

func TestOpenAIUnconfigured(t *testing.T) {
	p := NewOpenAI(config.ProviderConfig{Model: "gpt-4o"}, nil)
	ctx := context.Background()

	if _, err := p.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Complete() error = %v, want ErrNotConfigured", err)
	}
	if _, err := p.CreateChatCompletion(ctx, openai.ChatCompletionRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("CreateChatCompletion() error = %v, want ErrNotConfigured", err)
	}
	if _, err := p.ListModels(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ListModels() error = %v, want ErrNotConfigured", err)
	}
}

func TestAnthropicUnconfigured(t *testing.T) {
	p := NewAnthropic(config.ProviderConfig{Model: "claude-sonnet-4-20250514"}, nil)
	schema := json.RawMessage(`{"type":"object","properties":{"answer":{"type":"integer"}},"required":["answer"]}`)
	_, err := p.CompleteStructured(context.Background(), []Message{{Role: RoleUser, Content: "pick"}}, "answer", schema)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("CompleteStructured() error = %v, want ErrNotConfigured", err)
	}
}

func TestProviderNames(t *testing.T) {
	if got := NewOpenAI(config.ProviderConfig{}, nil).Name(); got != "openai" {
		t.Fatalf("Name() = %q", got)
	}
	if got := NewAnthropic(config.ProviderConfig{}, nil).Name(); got != "anthropic" {
		t.Fatalf("Name() = %q", got)
	}
}
