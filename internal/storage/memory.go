package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Geetk172/archestra/pkg/models"
)

// NewMemoryStores returns a StoreSet backed by process memory. It mirrors
// the Postgres semantics (unique names, cascade deletes, stable ordering)
// and is used by tests and local development.
func NewMemoryStores() StoreSet {
	shared := &memoryState{
		agents:             map[string]*models.Agent{},
		tools:              map[string]*models.Tool{},
		invocationPolicies: map[string]*models.ToolInvocationPolicy{},
		trustedPolicies:    map[string]*models.TrustedDataPolicy{},
		invocationJoins:    map[joinKey]bool{},
		trustedJoins:       map[joinKey]bool{},
		chats:              map[string]*models.Chat{},
		interactions:       map[string][]*models.Interaction{},
		dualResults:        map[string]*models.DualLLMResult{},
	}
	return StoreSet{
		Agents:             &memoryAgentStore{state: shared},
		Tools:              &memoryToolStore{state: shared},
		InvocationPolicies: &memoryInvocationPolicyStore{state: shared},
		TrustedPolicies:    &memoryTrustedPolicyStore{state: shared},
		Chats:              &memoryChatStore{state: shared},
		DualLLM:            &memoryDualLLMStore{state: shared},
	}
}

type joinKey struct {
	agentID  string
	policyID string
}

// memoryState is shared by the per-entity stores so cascade deletes can
// reach across entities, the way foreign keys do in Postgres.
type memoryState struct {
	mu sync.RWMutex

	agents             map[string]*models.Agent
	tools              map[string]*models.Tool
	invocationPolicies map[string]*models.ToolInvocationPolicy
	trustedPolicies    map[string]*models.TrustedDataPolicy
	invocationJoins    map[joinKey]bool
	trustedJoins       map[joinKey]bool
	chats              map[string]*models.Chat
	interactions       map[string][]*models.Interaction
	dualConfig         *models.DualLLMConfig
	dualResults        map[string]*models.DualLLMResult
}

type memoryAgentStore struct {
	state *memoryState
}

func (s *memoryAgentStore) Create(_ context.Context, agent *models.Agent) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.agents[agent.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.state.agents {
		if existing.Name == agent.Name {
			return ErrAlreadyExists
		}
	}
	copied := *agent
	s.state.agents[agent.ID] = &copied
	return nil
}

func (s *memoryAgentStore) Get(_ context.Context, id string) (*models.Agent, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	agent, ok := s.state.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *agent
	return &copied, nil
}

func (s *memoryAgentStore) List(_ context.Context) ([]*models.Agent, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	agents := make([]*models.Agent, 0, len(s.state.agents))
	for _, agent := range s.state.agents {
		copied := *agent
		agents = append(agents, &copied)
	}
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID < agents[j].ID
	})
	return agents, nil
}

func (s *memoryAgentStore) Update(_ context.Context, agent *models.Agent) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	existing, ok := s.state.agents[agent.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.state.agents {
		if id != agent.ID && other.Name == agent.Name {
			return ErrAlreadyExists
		}
	}
	existing.Name = agent.Name
	existing.UpdatedAt = agent.UpdatedAt
	return nil
}

func (s *memoryAgentStore) Delete(_ context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.agents[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.agents, id)
	// Cascade: tools owned by the agent, then policies owned by those
	// tools, then joins.
	for toolID, tool := range s.state.tools {
		if tool.AgentID == id {
			delete(s.state.tools, toolID)
			s.state.deletePoliciesForToolLocked(toolID)
		}
	}
	for key := range s.state.invocationJoins {
		if key.agentID == id {
			delete(s.state.invocationJoins, key)
		}
	}
	for key := range s.state.trustedJoins {
		if key.agentID == id {
			delete(s.state.trustedJoins, key)
		}
	}
	for toolCallID, result := range s.state.dualResults {
		if result.AgentID == id {
			delete(s.state.dualResults, toolCallID)
		}
	}
	return nil
}

func (st *memoryState) deletePoliciesForToolLocked(toolID string) {
	for policyID, p := range st.invocationPolicies {
		if p.ToolID == toolID {
			delete(st.invocationPolicies, policyID)
			for key := range st.invocationJoins {
				if key.policyID == policyID {
					delete(st.invocationJoins, key)
				}
			}
		}
	}
	for policyID, p := range st.trustedPolicies {
		if p.ToolID == toolID {
			delete(st.trustedPolicies, policyID)
			for key := range st.trustedJoins {
				if key.policyID == policyID {
					delete(st.trustedJoins, key)
				}
			}
		}
	}
}

type memoryToolStore struct {
	state *memoryState
}

func (s *memoryToolStore) Create(_ context.Context, tool *models.Tool) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.tools[tool.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.state.tools {
		if existing.Name == tool.Name {
			return ErrAlreadyExists
		}
	}
	copied := *tool
	s.state.tools[tool.ID] = &copied
	return nil
}

func (s *memoryToolStore) Get(_ context.Context, id string) (*models.Tool, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	tool, ok := s.state.tools[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *tool
	return &copied, nil
}

func (s *memoryToolStore) GetByName(_ context.Context, name string) (*models.Tool, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	for _, tool := range s.state.tools {
		if tool.Name == name {
			copied := *tool
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryToolStore) ListForAgent(_ context.Context, agentID string) ([]*models.Tool, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var tools []*models.Tool
	for _, tool := range s.state.tools {
		if tool.AgentID == agentID {
			copied := *tool
			tools = append(tools, &copied)
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools, nil
}

func (s *memoryToolStore) Update(_ context.Context, tool *models.Tool) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	existing, ok := s.state.tools[tool.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.state.tools {
		if id != tool.ID && other.Name == tool.Name {
			return ErrAlreadyExists
		}
	}
	existing.Name = tool.Name
	existing.Description = tool.Description
	existing.Parameters = tool.Parameters
	return nil
}

func (s *memoryToolStore) Delete(_ context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.tools[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.tools, id)
	s.state.deletePoliciesForToolLocked(id)
	return nil
}

type memoryInvocationPolicyStore struct {
	state *memoryState
}

func (s *memoryInvocationPolicyStore) Create(_ context.Context, p *models.ToolInvocationPolicy) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.invocationPolicies[p.ID]; ok {
		return ErrAlreadyExists
	}
	copied := *p
	s.state.invocationPolicies[p.ID] = &copied
	return nil
}

func (s *memoryInvocationPolicyStore) Get(_ context.Context, id string) (*models.ToolInvocationPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	p, ok := s.state.invocationPolicies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *memoryInvocationPolicyStore) List(_ context.Context) ([]*models.ToolInvocationPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(*models.ToolInvocationPolicy) bool { return true }), nil
}

func (s *memoryInvocationPolicyStore) ListByTool(_ context.Context, toolID string) ([]*models.ToolInvocationPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.ToolInvocationPolicy) bool { return p.ToolID == toolID }), nil
}

func (s *memoryInvocationPolicyStore) Update(_ context.Context, p *models.ToolInvocationPolicy) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	existing, ok := s.state.invocationPolicies[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Description = p.Description
	existing.ArgumentName = p.ArgumentName
	existing.Operator = p.Operator
	existing.Value = p.Value
	existing.Action = p.Action
	existing.BlockPrompt = p.BlockPrompt
	return nil
}

func (s *memoryInvocationPolicyStore) Delete(_ context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.invocationPolicies[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.invocationPolicies, id)
	for key := range s.state.invocationJoins {
		if key.policyID == id {
			delete(s.state.invocationJoins, key)
		}
	}
	return nil
}

func (s *memoryInvocationPolicyStore) Assign(_ context.Context, agentID, policyID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.agents[agentID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.state.invocationPolicies[policyID]; !ok {
		return ErrNotFound
	}
	s.state.invocationJoins[joinKey{agentID, policyID}] = true
	return nil
}

func (s *memoryInvocationPolicyStore) Unassign(_ context.Context, agentID, policyID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	key := joinKey{agentID, policyID}
	if !s.state.invocationJoins[key] {
		return ErrNotFound
	}
	delete(s.state.invocationJoins, key)
	return nil
}

func (s *memoryInvocationPolicyStore) ListForAgent(_ context.Context, agentID string) ([]*models.ToolInvocationPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.ToolInvocationPolicy) bool {
		return s.state.invocationJoins[joinKey{agentID, p.ID}]
	}), nil
}

func (s *memoryInvocationPolicyStore) ListAgentsForPolicy(_ context.Context, policyID string) ([]string, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var ids []string
	for key := range s.state.invocationJoins {
		if key.policyID == policyID {
			ids = append(ids, key.agentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memoryInvocationPolicyStore) ListToolInvocationPoliciesForAgentAndTool(_ context.Context, agentID, toolName string) ([]*models.ToolInvocationPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.ToolInvocationPolicy) bool {
		if !s.state.invocationJoins[joinKey{agentID, p.ID}] {
			return false
		}
		tool, ok := s.state.tools[p.ToolID]
		return ok && tool.Name == toolName
	}), nil
}

func (s *memoryInvocationPolicyStore) collectLocked(keep func(*models.ToolInvocationPolicy) bool) []*models.ToolInvocationPolicy {
	var policies []*models.ToolInvocationPolicy
	for _, p := range s.state.invocationPolicies {
		if keep(p) {
			copied := *p
			policies = append(policies, &copied)
		}
	}
	sortInvocationPolicies(policies)
	return policies
}

func sortInvocationPolicies(policies []*models.ToolInvocationPolicy) {
	sort.Slice(policies, func(i, j int) bool {
		if !policies[i].CreatedAt.Equal(policies[j].CreatedAt) {
			return policies[i].CreatedAt.Before(policies[j].CreatedAt)
		}
		return policies[i].ID < policies[j].ID
	})
}

type memoryTrustedPolicyStore struct {
	state *memoryState
}

func (s *memoryTrustedPolicyStore) Create(_ context.Context, p *models.TrustedDataPolicy) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.trustedPolicies[p.ID]; ok {
		return ErrAlreadyExists
	}
	copied := *p
	s.state.trustedPolicies[p.ID] = &copied
	return nil
}

func (s *memoryTrustedPolicyStore) Get(_ context.Context, id string) (*models.TrustedDataPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	p, ok := s.state.trustedPolicies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *memoryTrustedPolicyStore) List(_ context.Context) ([]*models.TrustedDataPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(*models.TrustedDataPolicy) bool { return true }), nil
}

func (s *memoryTrustedPolicyStore) ListByTool(_ context.Context, toolID string) ([]*models.TrustedDataPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.TrustedDataPolicy) bool { return p.ToolID == toolID }), nil
}

func (s *memoryTrustedPolicyStore) Update(_ context.Context, p *models.TrustedDataPolicy) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	existing, ok := s.state.trustedPolicies[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Description = p.Description
	existing.AttributePath = p.AttributePath
	existing.Operator = p.Operator
	existing.Value = p.Value
	return nil
}

func (s *memoryTrustedPolicyStore) Delete(_ context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.trustedPolicies[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.trustedPolicies, id)
	for key := range s.state.trustedJoins {
		if key.policyID == id {
			delete(s.state.trustedJoins, key)
		}
	}
	return nil
}

func (s *memoryTrustedPolicyStore) Assign(_ context.Context, agentID, policyID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.agents[agentID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.state.trustedPolicies[policyID]; !ok {
		return ErrNotFound
	}
	s.state.trustedJoins[joinKey{agentID, policyID}] = true
	return nil
}

func (s *memoryTrustedPolicyStore) Unassign(_ context.Context, agentID, policyID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	key := joinKey{agentID, policyID}
	if !s.state.trustedJoins[key] {
		return ErrNotFound
	}
	delete(s.state.trustedJoins, key)
	return nil
}

func (s *memoryTrustedPolicyStore) ListForAgent(_ context.Context, agentID string) ([]*models.TrustedDataPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.TrustedDataPolicy) bool {
		return s.state.trustedJoins[joinKey{agentID, p.ID}]
	}), nil
}

func (s *memoryTrustedPolicyStore) ListAgentsForPolicy(_ context.Context, policyID string) ([]string, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var ids []string
	for key := range s.state.trustedJoins {
		if key.policyID == policyID {
			ids = append(ids, key.agentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memoryTrustedPolicyStore) ListTrustedDataPoliciesForAgentAndTool(_ context.Context, agentID, toolName string) ([]*models.TrustedDataPolicy, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.collectLocked(func(p *models.TrustedDataPolicy) bool {
		if !s.state.trustedJoins[joinKey{agentID, p.ID}] {
			return false
		}
		tool, ok := s.state.tools[p.ToolID]
		return ok && tool.Name == toolName
	}), nil
}

func (s *memoryTrustedPolicyStore) collectLocked(keep func(*models.TrustedDataPolicy) bool) []*models.TrustedDataPolicy {
	var policies []*models.TrustedDataPolicy
	for _, p := range s.state.trustedPolicies {
		if keep(p) {
			copied := *p
			policies = append(policies, &copied)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		if !policies[i].CreatedAt.Equal(policies[j].CreatedAt) {
			return policies[i].CreatedAt.Before(policies[j].CreatedAt)
		}
		return policies[i].ID < policies[j].ID
	})
	return policies
}

type memoryChatStore struct {
	state *memoryState
}

func (s *memoryChatStore) Create(_ context.Context, chat *models.Chat) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.chats[chat.ID]; ok {
		return ErrAlreadyExists
	}
	copied := *chat
	s.state.chats[chat.ID] = &copied
	return nil
}

func (s *memoryChatStore) Get(_ context.Context, id string) (*models.ChatWithInteractions, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	chat, ok := s.state.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.ChatWithInteractions{
		Chat:         *chat,
		Interactions: copyInteractions(s.state.interactions[id]),
	}, nil
}

func (s *memoryChatStore) List(_ context.Context) ([]*models.ChatWithInteractions, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	chats := make([]*models.ChatWithInteractions, 0, len(s.state.chats))
	for id, chat := range s.state.chats {
		chats = append(chats, &models.ChatWithInteractions{
			Chat:         *chat,
			Interactions: copyInteractions(s.state.interactions[id]),
		})
	}
	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].CreatedAt.Before(chats[j].CreatedAt)
		}
		return chats[i].ID < chats[j].ID
	})
	return chats, nil
}

func (s *memoryChatStore) AppendInteraction(_ context.Context, interaction *models.Interaction) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	chat, ok := s.state.chats[interaction.ChatID]
	if !ok {
		return ErrNotFound
	}
	if interaction.Tainted && interaction.TaintReason == "" {
		return ErrTaintReasonRequired
	}
	copied := *interaction
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.state.interactions[interaction.ChatID] = append(s.state.interactions[interaction.ChatID], &copied)
	chat.UpdatedAt = copied.CreatedAt
	return nil
}

func (s *memoryChatStore) ListInteractions(_ context.Context, chatID string) ([]*models.Interaction, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	if _, ok := s.state.chats[chatID]; !ok {
		return nil, ErrNotFound
	}
	return copyInteractions(s.state.interactions[chatID]), nil
}

// copyInteractions preserves append order, which is the tie-break when
// created_at collides.
func copyInteractions(interactions []*models.Interaction) []*models.Interaction {
	out := make([]*models.Interaction, 0, len(interactions))
	for _, in := range interactions {
		copied := *in
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type memoryDualLLMStore struct {
	state *memoryState
}

func (s *memoryDualLLMStore) GetConfig(_ context.Context) (*models.DualLLMConfig, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	if s.state.dualConfig == nil {
		return models.DefaultDualLLMConfig(), nil
	}
	copied := *s.state.dualConfig
	return &copied, nil
}

func (s *memoryDualLLMStore) UpdateConfig(_ context.Context, cfg *models.DualLLMConfig) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if cfg.MaxRounds < 1 {
		return ErrInvalidMaxRounds
	}
	copied := *cfg
	copied.ID = models.DualLLMConfigID
	copied.UpdatedAt = time.Now()
	s.state.dualConfig = &copied
	return nil
}

func (s *memoryDualLLMStore) FindResultByToolCallID(_ context.Context, toolCallID string) (*models.DualLLMResult, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	result, ok := s.state.dualResults[toolCallID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *result
	return &copied, nil
}

func (s *memoryDualLLMStore) UpsertResult(_ context.Context, result *models.DualLLMResult) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	copied := *result
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.state.dualResults[result.ToolCallID] = &copied
	return nil
}
