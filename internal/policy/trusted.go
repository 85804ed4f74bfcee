package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Geetk172/archestra/pkg/models"
)

// NoTrustedPolicyReason is the fixed reason attached to untrusted results.
const NoTrustedPolicyReason = "no applicable trusted-data policy matched"

// TrustedPolicyLister is the single read the trust evaluator performs.
type TrustedPolicyLister interface {
	ListTrustedDataPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.TrustedDataPolicy, error)
}

// TrustDecision routes an inbound tool result.
type TrustDecision struct {
	Trusted bool

	// Blocked is reserved for a future explicit block action on
	// trusted-data policies; the pipeline honours it when set.
	Blocked bool

	SanitizeWithDualLLM bool
	Reason              string
}

// TrustEvaluator classifies tool results as trusted or untrusted.
type TrustEvaluator struct {
	store  TrustedPolicyLister
	logger *slog.Logger
}

// NewTrustEvaluator creates an evaluator over the given policy store.
func NewTrustEvaluator(store TrustedPolicyLister, logger *slog.Logger) *TrustEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustEvaluator{store: store, logger: logger}
}

// Evaluate marks a tool result trusted when at least one applicable
// policy matches it. A policy matches when its attribute path reaches at
// least one leaf and every reached leaf satisfies the operator. Untrusted
// results are routed to dual-LLM sanitisation. Adding policies can only
// widen trust, never revoke it.
func (e *TrustEvaluator) Evaluate(ctx context.Context, agentID, toolName string, result any) (TrustDecision, error) {
	policies, err := e.store.ListTrustedDataPoliciesForAgentAndTool(ctx, agentID, toolName)
	if err != nil {
		return TrustDecision{}, fmt.Errorf("list trusted data policies: %w", err)
	}

	for _, p := range policies {
		matched, err := e.policyMatches(p, result)
		if err != nil {
			e.logger.Warn("skipping trusted data policy",
				"policy_id", p.ID,
				"tool", toolName,
				"error", err,
			)
			continue
		}
		if matched {
			return TrustDecision{Trusted: true, Reason: p.Description}, nil
		}
	}

	return TrustDecision{
		SanitizeWithDualLLM: true,
		Reason:              NoTrustedPolicyReason,
	}, nil
}

func (e *TrustEvaluator) policyMatches(p *models.TrustedDataPolicy, result any) (bool, error) {
	leaves, err := ExtractLeaves(result, p.AttributePath)
	if err != nil {
		return false, fmt.Errorf("extract %q: %w", p.AttributePath, err)
	}
	// Zero leaves cannot establish trust.
	if len(leaves) == 0 {
		return false, nil
	}
	for _, leaf := range leaves {
		matched, err := Evaluate(p.Operator, leaf, p.Value)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}
