// Package dualllm implements the quarantine sub-agent that sanitises
// untrusted tool results. A privileged session that never sees the
// untrusted bytes asks multiple-choice questions; a quarantined session
// that does see them answers with an integer; the privileged session
// summarises the Q&A transcript for the main conversation.
package dualllm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape selects the message-shape adapter used to pull the original
// user request and the tool result out of the inbound conversation.
type Shape string

const (
	ShapeOpenAI    Shape = "openai"
	ShapeAnthropic Shape = "anthropic"
)

// ParseShape validates a provider path segment.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeOpenAI, ShapeAnthropic:
		return Shape(s), nil
	}
	return "", fmt.Errorf("unsupported provider %q", s)
}

// Extracted holds the two strings a quarantine session needs.
type Extracted struct {
	// OriginalUserRequest is what the user asked for, shown to the
	// privileged session.
	OriginalUserRequest string

	// ToolResult is the untrusted payload, shown only to the
	// quarantined session.
	ToolResult string
}

// Extract pulls the original user request and the anchored tool result
// from raw conversation messages. anchor is the tool_call_id (openai
// shape) or tool_use_id (anthropic shape) of the result being
// sanitised.
func Extract(shape Shape, messages []json.RawMessage, anchor string) (*Extracted, error) {
	switch shape {
	case ShapeOpenAI:
		return extractOpenAI(messages, anchor)
	case ShapeAnthropic:
		return extractAnthropic(messages, anchor)
	}
	return nil, fmt.Errorf("unsupported provider %q", shape)
}

type openAIMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCallID string          `json:"tool_call_id"`
}

func extractOpenAI(messages []json.RawMessage, anchor string) (*Extracted, error) {
	out := &Extracted{}
	foundResult := false
	for _, raw := range messages {
		var msg openAIMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		switch msg.Role {
		case "user":
			// Last user message wins.
			out.OriginalUserRequest = stringifyContent(msg.Content)
		case "tool":
			if msg.ToolCallID == anchor {
				out.ToolResult = normalizeResult(stringifyContent(msg.Content))
				foundResult = true
			}
		}
	}
	if !foundResult {
		return nil, fmt.Errorf("no tool message with tool_call_id %q", anchor)
	}
	return out, nil
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

func extractAnthropic(messages []json.RawMessage, anchor string) (*Extracted, error) {
	out := &Extracted{}
	foundResult := false
	for _, raw := range messages {
		var msg anthropicMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if msg.Role != "user" {
			continue
		}

		// String content is always plain user text.
		var text string
		if err := json.Unmarshal(msg.Content, &text); err == nil {
			out.OriginalUserRequest = text
			continue
		}

		var blocks []anthropicBlock
		if err := json.Unmarshal(msg.Content, &blocks); err != nil {
			continue
		}
		var textParts []string
		for _, block := range blocks {
			switch block.Type {
			case "text":
				textParts = append(textParts, block.Text)
			case "tool_result":
				if block.ToolUseID == anchor {
					out.ToolResult = normalizeResult(stringifyContent(block.Content))
					foundResult = true
				}
			}
		}
		// A user turn that only carries tool results does not replace
		// the original request.
		if len(textParts) > 0 {
			out.OriginalUserRequest = strings.Join(textParts, "\n")
		}
	}
	if !foundResult {
		return nil, fmt.Errorf("no tool_result block with tool_use_id %q", anchor)
	}
	return out, nil
}

// stringifyContent flattens a content field that may be a plain string
// or a multimodal block array into one string.
func stringifyContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []anthropicBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, block := range blocks {
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return string(raw)
}

// normalizeResult canonicalises tool-result text: valid JSON is
// re-encoded compactly, anything else passes through unchanged.
func normalizeResult(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}
