package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Geetk172/archestra/pkg/models"
)

type postgresDualLLMStore struct {
	db *sql.DB
}

// GetConfig returns the "default" row, falling back to the built-in
// prompts when the row has never been written.
func (s *postgresDualLLMStore) GetConfig(ctx context.Context) (*models.DualLLMConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, main_agent_prompt, quarantined_agent_prompt, summary_prompt, max_rounds, updated_at
		 FROM dual_llm_configs WHERE id = $1`, models.DualLLMConfigID)
	var cfg models.DualLLMConfig
	if err := row.Scan(&cfg.ID, &cfg.MainAgentPrompt, &cfg.QuarantinedAgentPrompt,
		&cfg.SummaryPrompt, &cfg.MaxRounds, &cfg.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return models.DefaultDualLLMConfig(), nil
		}
		return nil, fmt.Errorf("get dual llm config: %w", err)
	}
	return &cfg, nil
}

func (s *postgresDualLLMStore) UpdateConfig(ctx context.Context, cfg *models.DualLLMConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.MaxRounds < 1 {
		return ErrInvalidMaxRounds
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dual_llm_configs (id, main_agent_prompt, quarantined_agent_prompt, summary_prompt, max_rounds, updated_at)
		 VALUES ($1,$2,$3,$4,$5,now())
		 ON CONFLICT (id) DO UPDATE SET
		   main_agent_prompt = EXCLUDED.main_agent_prompt,
		   quarantined_agent_prompt = EXCLUDED.quarantined_agent_prompt,
		   summary_prompt = EXCLUDED.summary_prompt,
		   max_rounds = EXCLUDED.max_rounds,
		   updated_at = now()`,
		models.DualLLMConfigID, cfg.MainAgentPrompt, cfg.QuarantinedAgentPrompt,
		cfg.SummaryPrompt, cfg.MaxRounds,
	)
	if err != nil {
		return fmt.Errorf("update dual llm config: %w", err)
	}
	return nil
}

func (s *postgresDualLLMStore) FindResultByToolCallID(ctx context.Context, toolCallID string) (*models.DualLLMResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tool_call_id, agent_id, conversations, result, created_at
		 FROM dual_llm_results WHERE tool_call_id = $1`, toolCallID)
	var r models.DualLLMResult
	var conversations []byte
	if err := row.Scan(&r.ToolCallID, &r.AgentID, &conversations, &r.Result, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find dual llm result: %w", err)
	}
	r.Conversations = conversations
	return &r, nil
}

// UpsertResult uses last-writer-wins semantics: concurrent sanitisations
// of the same tool call id race on identical inputs, so either row is
// correct.
func (s *postgresDualLLMStore) UpsertResult(ctx context.Context, result *models.DualLLMResult) error {
	if result == nil || result.ToolCallID == "" {
		return fmt.Errorf("result is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dual_llm_results (tool_call_id, agent_id, conversations, result, created_at)
		 VALUES ($1,$2,$3,$4,now())
		 ON CONFLICT (tool_call_id) DO UPDATE SET
		   conversations = EXCLUDED.conversations,
		   result = EXCLUDED.result`,
		result.ToolCallID, result.AgentID, []byte(result.Conversations), result.Result,
	)
	if err != nil {
		return fmt.Errorf("upsert dual llm result: %w", err)
	}
	return nil
}
