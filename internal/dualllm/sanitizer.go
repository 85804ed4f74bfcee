package dualllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/Geetk172/archestra/internal/observability"
	"github.com/Geetk172/archestra/internal/providers"
	"github.com/Geetk172/archestra/internal/storage"
	"github.com/Geetk172/archestra/pkg/models"
)

// doneSentinel terminates the quarantine loop when it appears anywhere
// in a privileged reply.
const doneSentinel = "DONE"

// answerSchemaName names the structured reply the quarantined session
// must produce.
const answerSchemaName = "answer"

// quarantinedAnswer is the only shape the quarantined session may reply
// with. The schema handed to the provider is reflected from this type.
type quarantinedAnswer struct {
	Answer int `json:"answer" jsonschema:"description=Index of the chosen option"`
}

var (
	answerSchemaOnce sync.Once
	answerSchemaJSON json.RawMessage
)

func answerSchema() json.RawMessage {
	answerSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:      true,
			DoNotReference: true,
		}
		s := r.Reflect(&quarantinedAnswer{})
		s.Version = ""
		answerSchemaJSON, _ = json.Marshal(s)
	})
	return answerSchemaJSON
}

// Store is the persistence surface the sanitiser needs: the prompt
// configuration and the per-tool-call result cache.
type Store interface {
	GetConfig(ctx context.Context) (*models.DualLLMConfig, error)
	FindResultByToolCallID(ctx context.Context, toolCallID string) (*models.DualLLMResult, error)
	UpsertResult(ctx context.Context, result *models.DualLLMResult) error
}

// Request identifies one tool result to sanitise.
type Request struct {
	Shape    Shape
	Messages []json.RawMessage
	Anchor   string
	AgentID  string
}

// Sanitizer runs dual-LLM quarantine sessions, cache-first.
type Sanitizer struct {
	store      Store
	completers map[Shape]providers.Completer
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewSanitizer builds a sanitiser. The completer matching the request
// shape drives both the privileged and quarantined sessions.
func NewSanitizer(store Store, openAI, anthropic providers.Completer, logger *observability.Logger, metrics *observability.Metrics) *Sanitizer {
	return &Sanitizer{
		store: store,
		completers: map[Shape]providers.Completer{
			ShapeOpenAI:    openAI,
			ShapeAnthropic: anthropic,
		},
		logger:  logger.WithFields("component", "dualllm"),
		metrics: metrics,
	}
}

type conversationLog struct {
	Privileged  []providers.Message `json:"privileged"`
	Quarantined []providers.Message `json:"quarantined"`
}

// Sanitize returns the safe summary for the anchored tool result. A
// cached result for the same tool-call id is returned as-is; otherwise
// a fresh quarantine session runs and its outcome is persisted before
// returning.
func (s *Sanitizer) Sanitize(ctx context.Context, req Request) (string, error) {
	cached, err := s.store.FindResultByToolCallID(ctx, req.Anchor)
	if err == nil {
		s.count("cache", "success")
		s.logger.Debug(ctx, "Dual-LLM cache hit", "tool_call_id", req.Anchor)
		return cached.Result, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("dual llm cache lookup: %w", err)
	}

	summary, log, rounds, err := s.run(ctx, req)
	if err != nil {
		s.count("fresh", "error")
		return "", err
	}

	conversations, err := json.Marshal(log)
	if err != nil {
		s.count("fresh", "error")
		return "", fmt.Errorf("encode conversations: %w", err)
	}
	result := &models.DualLLMResult{
		ToolCallID:    req.Anchor,
		AgentID:       req.AgentID,
		Conversations: conversations,
		Result:        summary,
	}
	if err := s.store.UpsertResult(ctx, result); err != nil {
		s.count("fresh", "error")
		return "", fmt.Errorf("persist dual llm result: %w", err)
	}

	s.count("fresh", "success")
	if s.metrics != nil {
		s.metrics.SanitizationRounds.Observe(float64(rounds))
	}
	s.logger.Info(ctx, "Dual-LLM sanitisation complete",
		"tool_call_id", req.Anchor, "rounds", rounds)
	return summary, nil
}

func (s *Sanitizer) run(ctx context.Context, req Request) (summary string, log *conversationLog, rounds int, err error) {
	completer, ok := s.completers[req.Shape]
	if ok && completer == nil {
		ok = false
	}
	if !ok {
		return "", nil, 0, fmt.Errorf("no completer for provider %q", req.Shape)
	}

	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return "", nil, 0, fmt.Errorf("load dual llm config: %w", err)
	}

	extracted, err := Extract(req.Shape, req.Messages, req.Anchor)
	if err != nil {
		return "", nil, 0, err
	}

	seed, err := render(cfg.MainAgentPrompt, map[string]string{
		"originalUserRequest": extracted.OriginalUserRequest,
	})
	if err != nil {
		return "", nil, 0, err
	}

	log = &conversationLog{}
	privileged := []providers.Message{{Role: providers.RoleSystem, Content: seed}}

	for rounds = 0; rounds < cfg.MaxRounds; rounds++ {
		// The loop inherits the request deadline. On expiry, stop
		// asking and summarise what has accumulated.
		if ctx.Err() != nil {
			break
		}

		reply, err := completer.Complete(ctx, privileged)
		if err != nil {
			return "", nil, rounds, fmt.Errorf("privileged turn: %w", err)
		}
		privileged = append(privileged, providers.Message{Role: providers.RoleAssistant, Content: reply})

		if strings.Contains(reply, doneSentinel) {
			break
		}
		question, options, parsed := parseQuestion(reply)
		if !parsed {
			s.logger.Warn(ctx, "Malformed privileged reply, ending quarantine loop",
				"tool_call_id", req.Anchor, "round", rounds)
			break
		}

		k, qMessages, err := s.quarantinedTurn(ctx, completer, cfg, extracted, question, options)
		if err != nil {
			return "", nil, rounds, err
		}
		log.Quarantined = append(log.Quarantined, qMessages...)

		privileged = append(privileged, providers.Message{
			Role:    providers.RoleUser,
			Content: fmt.Sprintf("Answer: %d (%s)", k, options[k]),
		})
	}

	summary, err = s.summarize(ctx, completer, cfg, privileged)
	if err != nil {
		return "", nil, rounds, err
	}
	log.Privileged = privileged
	return summary, log, rounds, nil
}

// quarantinedTurn shows the untrusted bytes to the quarantined session
// and returns the clamped option index.
func (s *Sanitizer) quarantinedTurn(ctx context.Context, completer providers.Completer, cfg *models.DualLLMConfig, extracted *Extracted, question string, options []string) (int, []providers.Message, error) {
	prompt, err := render(cfg.QuarantinedAgentPrompt, map[string]string{
		"toolResultData": extracted.ToolResult,
		"question":       question,
		"options":        formatOptions(options),
		"maxIndex":       strconv.Itoa(len(options) - 1),
	})
	if err != nil {
		return 0, nil, err
	}

	messages := []providers.Message{{Role: providers.RoleUser, Content: prompt}}
	raw, err := completer.CompleteStructured(ctx, messages, answerSchemaName, answerSchema())
	if err != nil {
		return 0, nil, fmt.Errorf("quarantined turn: %w", err)
	}
	messages = append(messages, providers.Message{Role: providers.RoleAssistant, Content: raw})

	return clampAnswer(raw, len(options)), messages, nil
}

// clampAnswer picks the option index from the structured reply. An
// absent, non-integral or out-of-range answer selects the last option.
func clampAnswer(raw string, optionCount int) int {
	last := optionCount - 1
	var parsed struct {
		Answer json.Number `json:"answer"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return last
	}
	n, err := strconv.Atoi(parsed.Answer.String())
	if err != nil {
		return last
	}
	if n < 0 || n >= optionCount {
		return last
	}
	return n
}

func (s *Sanitizer) summarize(ctx context.Context, completer providers.Completer, cfg *models.DualLLMConfig, privileged []providers.Message) (string, error) {
	var qa []string
	for _, msg := range privileged[1:] {
		qa = append(qa, msg.Content)
	}
	prompt, err := render(cfg.SummaryPrompt, map[string]string{
		"qaText": strings.Join(qa, "\n\n"),
	})
	if err != nil {
		return "", err
	}
	summary, err := completer.Complete(ctx, []providers.Message{{Role: providers.RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("summary turn: %w", err)
	}
	return summary, nil
}

func (s *Sanitizer) count(source, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SanitizationCounter.WithLabelValues(source, status).Inc()
}
