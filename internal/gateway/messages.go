package gateway

import (
	"encoding/json"

	"github.com/Geetk172/archestra/internal/dualllm"
)

// wireMessage is the loosely-typed view of one conversation message the
// ingress scan needs. Everything else round-trips untouched.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCallID string          `json:"tool_call_id"`
	ToolCalls  []struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tool_calls"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

// findToolResults locates every inbound tool result in the request.
func findToolResults(shape dualllm.Shape, messages []json.RawMessage) ([]toolResultRef, error) {
	var refs []toolResultRef
	for i, raw := range messages {
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch shape {
		case dualllm.ShapeOpenAI:
			if msg.Role == "tool" {
				refs = append(refs, toolResultRef{
					messageIndex: i,
					blockIndex:   -1,
					anchor:       msg.ToolCallID,
					content:      flattenContent(msg.Content),
				})
			}
		case dualllm.ShapeAnthropic:
			if msg.Role != "user" {
				continue
			}
			var blocks []wireBlock
			if err := json.Unmarshal(msg.Content, &blocks); err != nil {
				continue
			}
			for j, block := range blocks {
				if block.Type == "tool_result" {
					refs = append(refs, toolResultRef{
						messageIndex: i,
						blockIndex:   j,
						anchor:       block.ToolUseID,
						content:      flattenContent(block.Content),
					})
				}
			}
		}
	}
	return refs, nil
}

// resolveToolName walks prior assistant turns for the tool call that
// produced the anchored result. Empty when no assistant turn emitted
// the anchor.
func resolveToolName(shape dualllm.Shape, messages []json.RawMessage, anchor string) string {
	for _, raw := range messages {
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Role != "assistant" {
			continue
		}
		switch shape {
		case dualllm.ShapeOpenAI:
			for _, tc := range msg.ToolCalls {
				if tc.ID == anchor {
					return tc.Function.Name
				}
			}
		case dualllm.ShapeAnthropic:
			var blocks []wireBlock
			if err := json.Unmarshal(msg.Content, &blocks); err != nil {
				continue
			}
			for _, block := range blocks {
				if block.Type == "tool_use" && block.ID == anchor {
					return block.Name
				}
			}
		}
	}
	return ""
}

// rewriteToolResult replaces the anchored tool-result content with the
// given text, preserving every other field of the message.
func rewriteToolResult(shape dualllm.Shape, raw json.RawMessage, ref toolResultRef, text string) (json.RawMessage, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}

	if shape == dualllm.ShapeOpenAI || ref.blockIndex < 0 {
		msg["content"] = encoded
		return json.Marshal(msg)
	}

	var blocks []map[string]json.RawMessage
	if err := json.Unmarshal(msg["content"], &blocks); err != nil {
		return nil, err
	}
	if ref.blockIndex < len(blocks) {
		blocks[ref.blockIndex]["content"] = encoded
	}
	content, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	msg["content"] = content
	return json.Marshal(msg)
}

// isToolResultOnly reports whether an anthropic-shaped user content
// carries nothing but tool_result blocks.
func isToolResultOnly(content json.RawMessage) bool {
	var blocks []wireBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return false
	}
	if len(blocks) == 0 {
		return false
	}
	for _, block := range blocks {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

// flattenContent renders a string-or-blocks content field as one string.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for _, block := range blocks {
			if block.Text != "" {
				if out != "" {
					out += "\n"
				}
				out += block.Text
			}
		}
		if out != "" {
			return out
		}
	}
	return string(raw)
}
