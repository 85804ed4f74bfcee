package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/Geetk172/archestra/pkg/models"
)

type stubInvocationLister struct {
	policies []*models.ToolInvocationPolicy
}

func (s *stubInvocationLister) ListToolInvocationPoliciesForAgentAndTool(_ context.Context, _, _ string) ([]*models.ToolInvocationPolicy, error) {
	return s.policies, nil
}

func evalInvocation(t *testing.T, policies []*models.ToolInvocationPolicy, args map[string]any) InvocationDecision {
	t.Helper()
	e := NewInvocationEvaluator(&stubInvocationLister{policies: policies}, nil)
	decision, err := e.Evaluate(context.Background(), "agent-1", "sendEmail", args)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return decision
}

func TestInvocationBlockBySuffix(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "no grafana recipients",
		ArgumentName: "to",
		Operator:     models.OperatorEndsWith,
		Value:        "@grafana.com",
		Action:       models.PolicyActionBlock,
	}}

	decision := evalInvocation(t, policies, map[string]any{"to": "x@grafana.com", "body": "hi"})
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if !strings.Contains(decision.DenyReason, "no grafana recipients") {
		t.Fatalf("DenyReason = %q", decision.DenyReason)
	}

	decision = evalInvocation(t, policies, map[string]any{"to": "x@example.com"})
	if !decision.Allowed {
		t.Fatalf("expected allow, got %q", decision.DenyReason)
	}
}

func TestInvocationBlockPromptWins(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "internal description",
		ArgumentName: "to",
		Operator:     models.OperatorContains,
		Value:        "@",
		Action:       models.PolicyActionBlock,
		BlockPrompt:  "Recipients outside the org are not allowed.",
	}}

	decision := evalInvocation(t, policies, map[string]any{"to": "x@y"})
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if decision.DenyReason != "Recipients outside the org are not allowed." {
		t.Fatalf("DenyReason = %q", decision.DenyReason)
	}
}

func TestInvocationAllowGateMissingArgument(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "only home paths",
		ArgumentName: "path",
		Operator:     models.OperatorStartsWith,
		Value:        "/home/",
		Action:       models.PolicyActionAllow,
	}}

	decision := evalInvocation(t, policies, map[string]any{})
	if decision.Allowed {
		t.Fatal("expected denial for missing argument")
	}
	if !strings.Contains(decision.DenyReason, "path") {
		t.Fatalf("DenyReason = %q, want mention of the argument name", decision.DenyReason)
	}
}

func TestInvocationAllowMustMatch(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "only home paths",
		ArgumentName: "path",
		Operator:     models.OperatorStartsWith,
		Value:        "/home/",
		Action:       models.PolicyActionAllow,
	}}

	if d := evalInvocation(t, policies, map[string]any{"path": "/etc/passwd"}); d.Allowed {
		t.Fatal("expected denial for non-matching allow policy")
	}
	if d := evalInvocation(t, policies, map[string]any{"path": "/home/user/x"}); !d.Allowed {
		t.Fatalf("expected allow, got %q", d.DenyReason)
	}
}

func TestInvocationBlockSkipsAbsentArgument(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "blocked subject",
		ArgumentName: "subject",
		Operator:     models.OperatorContains,
		Value:        "secret",
		Action:       models.PolicyActionBlock,
	}}

	if d := evalInvocation(t, policies, map[string]any{"to": "x@y"}); !d.Allowed {
		t.Fatalf("block policy must not fire on absent argument, got %q", d.DenyReason)
	}
}

func TestInvocationFirstDenialWins(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{
		{
			ID:           "p1",
			Description:  "first",
			ArgumentName: "to",
			Operator:     models.OperatorContains,
			Value:        "@",
			Action:       models.PolicyActionBlock,
		},
		{
			ID:           "p2",
			Description:  "second",
			ArgumentName: "to",
			Operator:     models.OperatorContains,
			Value:        "@",
			Action:       models.PolicyActionBlock,
		},
	}

	for i := 0; i < 5; i++ {
		decision := evalInvocation(t, policies, map[string]any{"to": "a@b"})
		if decision.Allowed {
			t.Fatal("expected denial")
		}
		if !strings.Contains(decision.DenyReason, "first") {
			t.Fatalf("DenyReason = %q, want the first policy's reason", decision.DenyReason)
		}
	}
}

func TestInvocationBadRegexSkipsPolicy(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{
		{
			ID:           "p1",
			Description:  "broken",
			ArgumentName: "to",
			Operator:     models.OperatorRegex,
			Value:        "(",
			Action:       models.PolicyActionBlock,
		},
		{
			ID:           "p2",
			Description:  "valid",
			ArgumentName: "to",
			Operator:     models.OperatorEndsWith,
			Value:        "@evil.com",
			Action:       models.PolicyActionBlock,
		},
	}

	decision := evalInvocation(t, policies, map[string]any{"to": "a@evil.com"})
	if decision.Allowed {
		t.Fatal("expected denial from the valid policy")
	}
	if !strings.Contains(decision.DenyReason, "valid") {
		t.Fatalf("DenyReason = %q", decision.DenyReason)
	}
}

func TestInvocationNoPoliciesAllows(t *testing.T) {
	if d := evalInvocation(t, nil, map[string]any{"anything": "goes"}); !d.Allowed {
		t.Fatalf("expected allow with no policies, got %q", d.DenyReason)
	}
}

func TestInvocationNestedArgumentName(t *testing.T) {
	policies := []*models.ToolInvocationPolicy{{
		ID:           "p1",
		Description:  "deep block",
		ArgumentName: "options.target.host",
		Operator:     models.OperatorEqual,
		Value:        "internal.db",
		Action:       models.PolicyActionBlock,
	}}

	args := map[string]any{
		"options": map[string]any{"target": map[string]any{"host": "internal.db"}},
	}
	if d := evalInvocation(t, policies, args); d.Allowed {
		t.Fatal("expected denial for nested argument match")
	}
}
