package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Geetk172/archestra/pkg/models"
)

func newAgent(name string) *models.Agent {
	now := time.Now()
	return &models.Agent{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
}

func newTool(agentID, name string) *models.Tool {
	return &models.Tool{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Name:       name,
		Parameters: json.RawMessage(`{"type":"object"}`),
	}
}

func TestMemoryAgentStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	agent := newAgent("mail-agent")

	if err := stores.Agents.Create(ctx, agent); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := stores.Agents.Create(ctx, newAgent("mail-agent")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate name error = %v, want ErrAlreadyExists", err)
	}

	got, err := stores.Agents.Get(ctx, agent.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "mail-agent" {
		t.Fatalf("Get() name = %q", got.Name)
	}

	agent.Name = "renamed"
	agent.UpdatedAt = time.Now()
	if err := stores.Agents.Update(ctx, agent); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	list, err := stores.Agents.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "renamed" {
		t.Fatalf("List() = %+v", list)
	}

	if err := stores.Agents.Delete(ctx, agent.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := stores.Agents.Get(ctx, agent.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryToolNameUnique(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	a := newAgent("a")
	b := newAgent("b")
	if err := stores.Agents.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := stores.Agents.Create(ctx, b); err != nil {
		t.Fatal(err)
	}

	if err := stores.Tools.Create(ctx, newTool(a.ID, "sendEmail")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Names are unique across agents so a wire tool name resolves to one tool.
	if err := stores.Tools.Create(ctx, newTool(b.ID, "sendEmail")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate tool name error = %v, want ErrAlreadyExists", err)
	}

	got, err := stores.Tools.GetByName(ctx, "sendEmail")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.AgentID != a.ID {
		t.Fatalf("GetByName() agent = %q, want %q", got.AgentID, a.ID)
	}
}

func TestMemoryPolicyJoinAndAgentToolListing(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	agent := newAgent("a")
	other := newAgent("b")
	if err := stores.Agents.Create(ctx, agent); err != nil {
		t.Fatal(err)
	}
	if err := stores.Agents.Create(ctx, other); err != nil {
		t.Fatal(err)
	}
	tool := newTool(agent.ID, "sendEmail")
	if err := stores.Tools.Create(ctx, tool); err != nil {
		t.Fatal(err)
	}

	earlier := time.Now().Add(-time.Minute)
	p1 := &models.ToolInvocationPolicy{
		ID: uuid.NewString(), ToolID: tool.ID, Description: "first",
		ArgumentName: "to", Operator: models.OperatorContains, Value: "@",
		Action: models.PolicyActionBlock, CreatedAt: earlier,
	}
	p2 := &models.ToolInvocationPolicy{
		ID: uuid.NewString(), ToolID: tool.ID, Description: "second",
		ArgumentName: "to", Operator: models.OperatorContains, Value: "@",
		Action: models.PolicyActionBlock, CreatedAt: time.Now(),
	}
	for _, p := range []*models.ToolInvocationPolicy{p2, p1} {
		if err := stores.InvocationPolicies.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := stores.InvocationPolicies.Assign(ctx, agent.ID, p1.ID); err != nil {
		t.Fatal(err)
	}
	if err := stores.InvocationPolicies.Assign(ctx, agent.ID, p2.ID); err != nil {
		t.Fatal(err)
	}

	got, err := stores.InvocationPolicies.ListToolInvocationPoliciesForAgentAndTool(ctx, agent.ID, "sendEmail")
	if err != nil {
		t.Fatalf("ListToolInvocationPoliciesForAgentAndTool() error = %v", err)
	}
	if len(got) != 2 || got[0].Description != "first" || got[1].Description != "second" {
		t.Fatalf("expected created_at ordering, got %+v", got)
	}

	// Unjoined agent sees nothing.
	none, err := stores.InvocationPolicies.ListToolInvocationPoliciesForAgentAndTool(ctx, other.ID, "sendEmail")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("unjoined agent got %d policies", len(none))
	}

	agents, err := stores.InvocationPolicies.ListAgentsForPolicy(ctx, p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0] != agent.ID {
		t.Fatalf("ListAgentsForPolicy() = %v", agents)
	}

	if err := stores.InvocationPolicies.Unassign(ctx, agent.ID, p1.ID); err != nil {
		t.Fatal(err)
	}
	got, err = stores.InvocationPolicies.ListToolInvocationPoliciesForAgentAndTool(ctx, agent.ID, "sendEmail")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "second" {
		t.Fatalf("after unassign got %+v", got)
	}
}

func TestMemoryCascadeDeleteAgent(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	agent := newAgent("a")
	if err := stores.Agents.Create(ctx, agent); err != nil {
		t.Fatal(err)
	}
	tool := newTool(agent.ID, "getEmails")
	if err := stores.Tools.Create(ctx, tool); err != nil {
		t.Fatal(err)
	}
	p := &models.TrustedDataPolicy{
		ID: uuid.NewString(), ToolID: tool.ID, Description: "d",
		AttributePath: "x", Operator: models.OperatorEqual, Value: "1",
		CreatedAt: time.Now(),
	}
	if err := stores.TrustedPolicies.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := stores.TrustedPolicies.Assign(ctx, agent.ID, p.ID); err != nil {
		t.Fatal(err)
	}

	if err := stores.Agents.Delete(ctx, agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := stores.Tools.Get(ctx, tool.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tool survived agent delete: %v", err)
	}
	if _, err := stores.TrustedPolicies.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("policy survived agent delete: %v", err)
	}
}

func TestMemoryChatInteractions(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	chat := &models.Chat{ID: uuid.NewString(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := stores.Chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	for i, content := range []string{`{"role":"tool"}`, `{"role":"user"}`, `{"role":"assistant"}`} {
		in := &models.Interaction{
			ID:        uuid.NewString(),
			ChatID:    chat.ID,
			Content:   json.RawMessage(content),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := stores.Chats.AppendInteraction(ctx, in); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
	}

	got, err := stores.Chats.Get(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Interactions) != 3 {
		t.Fatalf("interactions = %d", len(got.Interactions))
	}
	for i, role := range []string{"tool", "user", "assistant"} {
		var msg map[string]string
		if err := json.Unmarshal(got.Interactions[i].Content, &msg); err != nil {
			t.Fatal(err)
		}
		if msg["role"] != role {
			t.Fatalf("interaction %d role = %q, want %q", i, msg["role"], role)
		}
	}
}

func TestMemoryTaintRequiresReason(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	chat := &models.Chat{ID: uuid.NewString(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := stores.Chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}
	err := stores.Chats.AppendInteraction(ctx, &models.Interaction{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		Content: json.RawMessage(`{}`),
		Tainted: true,
	})
	if !errors.Is(err, ErrTaintReasonRequired) {
		t.Fatalf("error = %v, want ErrTaintReasonRequired", err)
	}
}

func TestMemoryDualLLMStore(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()

	cfg, err := stores.DualLLM.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if cfg.MaxRounds < 1 {
		t.Fatalf("default MaxRounds = %d", cfg.MaxRounds)
	}

	cfg.MaxRounds = 0
	if err := stores.DualLLM.UpdateConfig(ctx, cfg); !errors.Is(err, ErrInvalidMaxRounds) {
		t.Fatalf("UpdateConfig() error = %v, want ErrInvalidMaxRounds", err)
	}
	cfg.MaxRounds = 3
	cfg.SummaryPrompt = "custom {{qaText}}"
	if err := stores.DualLLM.UpdateConfig(ctx, cfg); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	got, err := stores.DualLLM.GetConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxRounds != 3 || got.SummaryPrompt != "custom {{qaText}}" {
		t.Fatalf("GetConfig() = %+v", got)
	}

	if _, err := stores.DualLLM.FindResultByToolCallID(ctx, "tc1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindResultByToolCallID() error = %v, want ErrNotFound", err)
	}
	result := &models.DualLLMResult{
		ToolCallID:    "tc1",
		AgentID:       uuid.NewString(),
		Conversations: json.RawMessage(`{"privileged":[]}`),
		Result:        "SAFE",
	}
	if err := stores.DualLLM.UpsertResult(ctx, result); err != nil {
		t.Fatal(err)
	}
	// Upsert again: last writer wins, still one row.
	result.Result = "SAFE"
	if err := stores.DualLLM.UpsertResult(ctx, result); err != nil {
		t.Fatal(err)
	}
	cached, err := stores.DualLLM.FindResultByToolCallID(ctx, "tc1")
	if err != nil {
		t.Fatal(err)
	}
	if cached.Result != "SAFE" {
		t.Fatalf("cached result = %q", cached.Result)
	}
}
