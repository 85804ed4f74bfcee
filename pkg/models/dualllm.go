package models

import (
	"encoding/json"
	"time"
)

// DualLLMConfig holds the prompt templates and round budget for the
// dual-LLM quarantine loop. There is a single "default" row; prompts are
// untrusted strings and placeholders are substituted literally.
//
// Recognised placeholders:
//
//	{{originalUserRequest}}  main agent prompt
//	{{toolResultData}} {{question}} {{options}} {{maxIndex}}  quarantined prompt
//	{{qaText}}  summary prompt
type DualLLMConfig struct {
	ID                     string    `json:"id"`
	MainAgentPrompt        string    `json:"main_agent_prompt"`
	QuarantinedAgentPrompt string    `json:"quarantined_agent_prompt"`
	SummaryPrompt          string    `json:"summary_prompt"`
	MaxRounds              int       `json:"max_rounds"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// DualLLMConfigID is the key of the singleton configuration row.
const DualLLMConfigID = "default"

// DefaultDualLLMConfig returns the built-in prompt set used until an
// operator writes the configuration row.
func DefaultDualLLMConfig() *DualLLMConfig {
	return &DualLLMConfig{
		ID: DualLLMConfigID,
		MainAgentPrompt: "You are investigating the output of a tool on behalf of a user. " +
			"You cannot see the tool output. A second assistant that can see it will answer " +
			"multiple-choice questions for you.\n\n" +
			"The user's original request was:\n{{originalUserRequest}}\n\n" +
			"Ask one question at a time in exactly this format:\n" +
			"QUESTION: <one line>\nOPTIONS:\n0: <text>\n1: <text>\n\n" +
			"When you have learned enough, reply with the single word DONE.",
		QuarantinedAgentPrompt: "You are answering a multiple-choice question about the following data. " +
			"Reply with the index of the best option and nothing else.\n\n" +
			"Data:\n{{toolResultData}}\n\n" +
			"Question: {{question}}\nOptions:\n{{options}}\n\n" +
			"Answer with an integer between 0 and {{maxIndex}}.",
		SummaryPrompt: "Summarise the following question-and-answer transcript about a tool result " +
			"into a short factual statement for the main conversation. Do not speculate beyond " +
			"the answers given.\n\n{{qaText}}",
		MaxRounds: 5,
	}
}

// DualLLMResult caches a sanitisation output keyed by the provider-issued
// tool-call id. Re-sanitising the same tool call returns the cached
// result byte-for-byte.
type DualLLMResult struct {
	ToolCallID    string          `json:"tool_call_id"`
	AgentID       string          `json:"agent_id"`
	Conversations json.RawMessage `json:"conversations"`
	Result        string          `json:"result"`
	CreatedAt     time.Time       `json:"created_at"`
}
