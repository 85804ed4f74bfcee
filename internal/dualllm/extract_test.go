package dualllm

import (
	"encoding/json"
	"strings"
	"testing"
)

func rawMessages(t *testing.T, msgs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(msgs))
	for i, m := range msgs {
		out[i] = json.RawMessage(m)
	}
	return out
}

func TestExtractOpenAIShape(t *testing.T) {
	messages := rawMessages(t,
		`{"role":"user","content":"first question"}`,
		`{"role":"assistant","content":null,"tool_calls":[{"id":"tc1","type":"function","function":{"name":"getEmails","arguments":"{}"}}]}`,
		`{"role":"tool","tool_call_id":"tc1","content":"{\"emails\": [{\"from\": \"a@b.c\"}]}"}`,
		`{"role":"user","content":"summarise my inbox"}`,
	)
	got, err := Extract(ShapeOpenAI, messages, "tc1")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.OriginalUserRequest != "summarise my inbox" {
		t.Fatalf("OriginalUserRequest = %q", got.OriginalUserRequest)
	}
	// Valid JSON content is re-encoded compactly.
	if got.ToolResult != `{"emails":[{"from":"a@b.c"}]}` {
		t.Fatalf("ToolResult = %q", got.ToolResult)
	}
}

func TestExtractOpenAIMultimodalUserContent(t *testing.T) {
	messages := rawMessages(t,
		`{"role":"user","content":[{"type":"text","text":"look at this"},{"type":"image_url","image_url":{"url":"http://x"}}]}`,
		`{"role":"tool","tool_call_id":"tc9","content":"plain text result"}`,
	)
	got, err := Extract(ShapeOpenAI, messages, "tc9")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.OriginalUserRequest != "look at this" {
		t.Fatalf("OriginalUserRequest = %q", got.OriginalUserRequest)
	}
	if got.ToolResult != "plain text result" {
		t.Fatalf("ToolResult = %q", got.ToolResult)
	}
}

func TestExtractOpenAIMissingAnchor(t *testing.T) {
	messages := rawMessages(t, `{"role":"user","content":"hi"}`)
	if _, err := Extract(ShapeOpenAI, messages, "tc1"); err == nil {
		t.Fatal("expected error for missing anchor")
	}
}

func TestExtractAnthropicShape(t *testing.T) {
	messages := rawMessages(t,
		`{"role":"user","content":"check my calendar"}`,
		`{"role":"assistant","content":[{"type":"tool_use","id":"tu1","name":"getEvents","input":{}}]}`,
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":[{"type":"text","text":"{\"events\":[]}"}]}]}`,
	)
	got, err := Extract(ShapeAnthropic, messages, "tu1")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	// The tool-result-only user turn must not displace the request.
	if got.OriginalUserRequest != "check my calendar" {
		t.Fatalf("OriginalUserRequest = %q", got.OriginalUserRequest)
	}
	if got.ToolResult != `{"events":[]}` {
		t.Fatalf("ToolResult = %q", got.ToolResult)
	}
}

func TestExtractAnthropicAnchorSelectsBlock(t *testing.T) {
	messages := rawMessages(t,
		`{"role":"user","content":"do both"}`,
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":"first"},{"type":"tool_result","tool_use_id":"tu2","content":"second"}]}`,
	)
	got, err := Extract(ShapeAnthropic, messages, "tu2")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.ToolResult != "second" {
		t.Fatalf("ToolResult = %q", got.ToolResult)
	}
}

func TestParseShape(t *testing.T) {
	if _, err := ParseShape("openai"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseShape("anthropic"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseShape("mistral"); err == nil {
		t.Fatal("expected error for unsupported provider")
	} else if !strings.Contains(err.Error(), "unsupported provider") {
		t.Fatalf("error = %v", err)
	}
}
