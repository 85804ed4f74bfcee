// Package storage defines the persistence interfaces for agents, tools,
// policies, chats and dual-LLM state, with a Postgres implementation and
// an in-memory implementation used in tests.
package storage

import (
	"context"
	"errors"

	"github.com/Geetk172/archestra/pkg/models"
)

// Sentinel errors shared by all implementations.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrTaintReasonRequired = errors.New("tainted interaction requires a taint reason")
	ErrInvalidMaxRounds    = errors.New("max_rounds must be >= 1")
)

// AgentStore manages agent rows.
type AgentStore interface {
	Create(ctx context.Context, agent *models.Agent) error
	Get(ctx context.Context, id string) (*models.Agent, error)
	List(ctx context.Context) ([]*models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	Delete(ctx context.Context, id string) error
}

// ToolStore manages tool definitions. Tool names are globally unique.
type ToolStore interface {
	Create(ctx context.Context, tool *models.Tool) error
	Get(ctx context.Context, id string) (*models.Tool, error)
	GetByName(ctx context.Context, name string) (*models.Tool, error)
	ListForAgent(ctx context.Context, agentID string) ([]*models.Tool, error)
	Update(ctx context.Context, tool *models.Tool) error
	Delete(ctx context.Context, id string) error
}

// ToolInvocationPolicyStore manages tool-invocation policies and their
// agent joins. ListToolInvocationPoliciesForAgentAndTool is the
// performance-critical read on the proxy path and must be a single join
// query returning rows in stable order (created_at asc, id asc).
type ToolInvocationPolicyStore interface {
	Create(ctx context.Context, p *models.ToolInvocationPolicy) error
	Get(ctx context.Context, id string) (*models.ToolInvocationPolicy, error)
	List(ctx context.Context) ([]*models.ToolInvocationPolicy, error)
	ListByTool(ctx context.Context, toolID string) ([]*models.ToolInvocationPolicy, error)
	Update(ctx context.Context, p *models.ToolInvocationPolicy) error
	Delete(ctx context.Context, id string) error

	Assign(ctx context.Context, agentID, policyID string) error
	Unassign(ctx context.Context, agentID, policyID string) error
	ListForAgent(ctx context.Context, agentID string) ([]*models.ToolInvocationPolicy, error)
	ListAgentsForPolicy(ctx context.Context, policyID string) ([]string, error)

	ListToolInvocationPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.ToolInvocationPolicy, error)
}

// TrustedDataPolicyStore manages trusted-data policies and their agent
// joins, with the same single-join-query contract on the proxy-path read.
type TrustedDataPolicyStore interface {
	Create(ctx context.Context, p *models.TrustedDataPolicy) error
	Get(ctx context.Context, id string) (*models.TrustedDataPolicy, error)
	List(ctx context.Context) ([]*models.TrustedDataPolicy, error)
	ListByTool(ctx context.Context, toolID string) ([]*models.TrustedDataPolicy, error)
	Update(ctx context.Context, p *models.TrustedDataPolicy) error
	Delete(ctx context.Context, id string) error

	Assign(ctx context.Context, agentID, policyID string) error
	Unassign(ctx context.Context, agentID, policyID string) error
	ListForAgent(ctx context.Context, agentID string) ([]*models.TrustedDataPolicy, error)
	ListAgentsForPolicy(ctx context.Context, policyID string) ([]string, error)

	ListTrustedDataPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.TrustedDataPolicy, error)
}

// ChatStore is append-only on interactions. Reads return interactions
// ordered by created_at ascending with insertion order as the tie-break.
type ChatStore interface {
	Create(ctx context.Context, chat *models.Chat) error
	Get(ctx context.Context, id string) (*models.ChatWithInteractions, error)
	List(ctx context.Context) ([]*models.ChatWithInteractions, error)
	AppendInteraction(ctx context.Context, interaction *models.Interaction) error
	ListInteractions(ctx context.Context, chatID string) ([]*models.Interaction, error)
}

// DualLLMStore holds the prompt configuration singleton and the
// per-tool-call-id sanitisation cache.
type DualLLMStore interface {
	GetConfig(ctx context.Context) (*models.DualLLMConfig, error)
	UpdateConfig(ctx context.Context, cfg *models.DualLLMConfig) error
	FindResultByToolCallID(ctx context.Context, toolCallID string) (*models.DualLLMResult, error)
	UpsertResult(ctx context.Context, result *models.DualLLMResult) error
}

// StoreSet groups the stores backing one deployment.
type StoreSet struct {
	Agents             AgentStore
	Tools              ToolStore
	InvocationPolicies ToolInvocationPolicyStore
	TrustedPolicies    TrustedDataPolicyStore
	Chats              ChatStore
	DualLLM            DualLLMStore

	closer func() error
}

// Close releases the underlying resources, if any.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
