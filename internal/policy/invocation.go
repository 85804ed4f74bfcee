package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Geetk172/archestra/pkg/models"
)

// InvocationPolicyLister is the single read the invocation evaluator
// performs: the applicable policies for one agent and tool, in stable
// order (created_at ascending, id ascending).
type InvocationPolicyLister interface {
	ListToolInvocationPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.ToolInvocationPolicy, error)
}

// InvocationDecision is the outcome of gating one proposed tool call.
type InvocationDecision struct {
	Allowed    bool
	DenyReason string
}

// InvocationEvaluator decides whether an assistant-proposed tool call may
// be returned to the client.
type InvocationEvaluator struct {
	store  InvocationPolicyLister
	logger *slog.Logger
}

// NewInvocationEvaluator creates an evaluator over the given policy store.
func NewInvocationEvaluator(store InvocationPolicyLister, logger *slog.Logger) *InvocationEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvocationEvaluator{store: store, logger: logger}
}

// Evaluate applies every applicable policy to the decoded tool arguments.
// Allow policies are conjunctive and fail closed: a missing argument or a
// non-matching value denies. Block policies deny on match and skip on
// absent arguments. The first denial wins, so deny reasons are
// deterministic given the store's ordering.
func (e *InvocationEvaluator) Evaluate(ctx context.Context, agentID, toolName string, args map[string]any) (InvocationDecision, error) {
	policies, err := e.store.ListToolInvocationPoliciesForAgentAndTool(ctx, agentID, toolName)
	if err != nil {
		return InvocationDecision{}, fmt.Errorf("list tool invocation policies: %w", err)
	}

	for _, p := range policies {
		value, present := LookupArgument(args, p.ArgumentName)
		if !present {
			if p.Action == models.PolicyActionBlock {
				continue
			}
			return InvocationDecision{
				Allowed:    false,
				DenyReason: fmt.Sprintf("Missing required argument: %s", p.ArgumentName),
			}, nil
		}

		matched, err := Evaluate(p.Operator, value, p.Value)
		if err != nil {
			e.logger.Warn("skipping tool invocation policy",
				"policy_id", p.ID,
				"tool", toolName,
				"error", err,
			)
			continue
		}

		if p.Action == models.PolicyActionBlock && matched {
			return InvocationDecision{Allowed: false, DenyReason: p.DenyReason()}, nil
		}
		if p.Action == models.PolicyActionAllow && !matched {
			return InvocationDecision{Allowed: false, DenyReason: p.DenyReason()}, nil
		}
	}

	return InvocationDecision{Allowed: true}, nil
}
