package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Geetk172/archestra/internal/config"
	"github.com/Geetk172/archestra/internal/observability"
)

// anthropicMaxTokens bounds dual-LLM replies. The sessions exchange
// short questions, integer answers, and a summary, so 4096 is ample.
const anthropicMaxTokens = 4096

// Anthropic implements Completer for anthropic-flavoured dual-LLM
// sessions. The forward path stays OpenAI-compatible, so this provider
// never serves Upstream.
type Anthropic struct {
	client  *anthropic.Client
	model   string
	metrics *observability.Metrics
}

// NewAnthropic creates an Anthropic provider from the given
// configuration. An empty API key is tolerated; calls fail with
// ErrNotConfigured until one is supplied. metrics may be nil.
func NewAnthropic(cfg config.ProviderConfig, metrics *observability.Metrics) *Anthropic {
	p := &Anthropic{model: cfg.Model, metrics: metrics}
	if cfg.APIKey == "" {
		return p
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	p.client = &client
	return p
}

func (p *Anthropic) Name() string {
	return "anthropic"
}

// Complete runs a temperature-zero completion and returns the
// concatenated text blocks of the reply.
func (p *Anthropic) Complete(ctx context.Context, messages []Message) (string, error) {
	msg, err := p.send(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// CompleteStructured forces the reply through a single tool whose input
// schema is the given JSON schema, and returns the tool input as raw
// JSON text. Anthropic has no response_format equivalent; forced tool
// use is the schema-enforcement mechanism.
func (p *Anthropic) CompleteStructured(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage) (string, error) {
	var inputSchema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(schema, &inputSchema); err != nil {
		return "", fmt.Errorf("anthropic structured completion: invalid schema: %w", err)
	}
	tool := anthropic.ToolUnionParamOfTool(inputSchema, schemaName)

	msg, err := p.send(ctx, messages, &tool)
	if err != nil {
		return "", err
	}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == schemaName {
			return string(block.Input), nil
		}
	}
	return "", fmt.Errorf("anthropic structured completion: no %s tool use in reply", schemaName)
}

func (p *Anthropic) send(ctx context.Context, messages []Message, tool *anthropic.ToolUnionParam) (*anthropic.Message, error) {
	if p.client == nil {
		return nil, ErrNotConfigured
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(0),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if tool != nil {
		params.Tools = []anthropic.ToolUnionParam{*tool}
		if tool.OfTool != nil {
			params.ToolChoice = anthropic.ToolChoiceParamOfTool(tool.OfTool.Name)
		}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	p.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return msg, nil
}

func (p *Anthropic) observe(start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.LLMRequestCounter.WithLabelValues("anthropic", p.model, status).Inc()
	p.metrics.LLMRequestDuration.WithLabelValues("anthropic", p.model).Observe(time.Since(start).Seconds())
}
