package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Geetk172/archestra/internal/config"
	"github.com/Geetk172/archestra/internal/observability"
)

// OpenAI implements Upstream for the forward path and Completer for
// openai-flavoured dual-LLM sessions.
//
// Safe for concurrent use; each call creates an independent request
// or stream.
type OpenAI struct {
	client  *openai.Client
	model   string
	metrics *observability.Metrics
}

// NewOpenAI creates an OpenAI provider from the given configuration.
// An empty API key is tolerated; calls fail with ErrNotConfigured
// until one is supplied. metrics may be nil.
func NewOpenAI(cfg config.ProviderConfig, metrics *observability.Metrics) *OpenAI {
	p := &OpenAI{model: cfg.Model, metrics: metrics}
	if cfg.APIKey == "" {
		return p
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientCfg)
	return p
}

func (p *OpenAI) Name() string {
	return "openai"
}

// CreateChatCompletion forwards a non-streaming completion upstream.
func (p *OpenAI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if p.client == nil {
		return openai.ChatCompletionResponse{}, ErrNotConfigured
	}
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	p.observe(req.Model, start, err)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return resp, nil
}

// CreateChatCompletionStream opens a streaming completion upstream.
func (p *OpenAI) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (CompletionStream, error) {
	if p.client == nil {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	p.observe(req.Model, start, err)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion stream: %w", err)
	}
	return stream, nil
}

// ListModels returns the upstream model list unmodified.
func (p *OpenAI) ListModels(ctx context.Context) (openai.ModelsList, error) {
	if p.client == nil {
		return openai.ModelsList{}, ErrNotConfigured
	}
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return openai.ModelsList{}, fmt.Errorf("openai list models: %w", err)
	}
	return list, nil
}

// Complete runs a temperature-zero completion with the configured model.
func (p *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, nil)
}

// CompleteStructured forces the reply through the response_format JSON
// schema feature and returns the raw JSON text.
func (p *OpenAI) CompleteStructured(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   schemaName,
			Schema: schema,
			Strict: true,
		},
	}
	return p.complete(ctx, messages, format)
}

func (p *OpenAI) complete(ctx context.Context, messages []Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	if p.client == nil {
		return "", ErrNotConfigured
	}
	req := openai.ChatCompletionRequest{
		Model: p.model,
		// The SDK omits a zero temperature, which would fall back to the
		// upstream default of 1. The smallest positive value keeps the
		// sessions deterministic.
		Temperature: 1e-8,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	req.ResponseFormat = format

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	p.observe(p.model, start, err)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAI) observe(model string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.LLMRequestCounter.WithLabelValues("openai", model, status).Inc()
	p.metrics.LLMRequestDuration.WithLabelValues("openai", model).Observe(time.Since(start).Seconds())
}
