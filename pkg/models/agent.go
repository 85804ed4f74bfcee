package models

import (
	"encoding/json"
	"time"
)

// Agent is the security scope unit. Every policy is evaluated in the
// context of exactly one agent, and every tool is owned by one agent.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tool is a callable tool definition owned by an agent. Tool names are
// globally unique so that a tool name on the wire resolves to exactly
// one tool, and through it to the agent whose policies apply.
type Tool struct {
	ID          string          `json:"id"`
	AgentID     string          `json:"agent_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema
}
