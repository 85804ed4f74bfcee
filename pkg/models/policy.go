package models

import "time"

// Operator is the closed set of comparison operators a policy may use.
type Operator string

const (
	OperatorEqual       Operator = "equal"
	OperatorNotEqual    Operator = "notEqual"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "notContains"
	OperatorStartsWith  Operator = "startsWith"
	OperatorEndsWith    Operator = "endsWith"
	OperatorRegex       Operator = "regex"
)

// Valid reports whether op is a member of the closed operator set.
func (op Operator) Valid() bool {
	switch op {
	case OperatorEqual, OperatorNotEqual, OperatorContains, OperatorNotContains,
		OperatorStartsWith, OperatorEndsWith, OperatorRegex:
		return true
	}
	return false
}

// PolicyAction determines how a matching tool-invocation policy is applied.
type PolicyAction string

const (
	// PolicyActionAllow gates the call: the rule must match or the call
	// is denied. Absent arguments also deny.
	PolicyActionAllow PolicyAction = "allow"

	// PolicyActionBlock denies the call when the rule matches. A block
	// rule never fires on an absent argument.
	PolicyActionBlock PolicyAction = "block"
)

// Valid reports whether a is a known policy action.
func (a PolicyAction) Valid() bool {
	return a == PolicyActionAllow || a == PolicyActionBlock
}

// ToolInvocationPolicy constrains the arguments an assistant-proposed
// tool call may carry before it is returned to the client.
type ToolInvocationPolicy struct {
	ID           string       `json:"id"`
	ToolID       string       `json:"tool_id"`
	Description  string       `json:"description"`
	ArgumentName string       `json:"argument_name"`
	Operator     Operator     `json:"operator"`
	Value        string       `json:"value"`
	Action       PolicyAction `json:"action"`
	BlockPrompt  string       `json:"block_prompt,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// DenyReason is the reason surfaced to the client when this policy
// denies a call: the block prompt when set, else the description.
func (p *ToolInvocationPolicy) DenyReason() string {
	if p.BlockPrompt != "" {
		return p.BlockPrompt
	}
	return "Policy violation: " + p.Description
}

// TrustedDataPolicy marks tool results trusted: when every leaf reached
// by AttributePath satisfies the operator, the result is trusted and
// skips dual-LLM sanitisation.
type TrustedDataPolicy struct {
	ID            string    `json:"id"`
	ToolID        string    `json:"tool_id"`
	Description   string    `json:"description"`
	AttributePath string    `json:"attribute_path"`
	Operator      Operator  `json:"operator"`
	Value         string    `json:"value"`
	CreatedAt     time.Time `json:"created_at"`
}
