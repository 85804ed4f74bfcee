package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	key := "sk-" + strings.Repeat("a", 48)
	logger.Info(context.Background(), "upstream call", "detail", "api_key = "+key)

	out := buf.String()
	if strings.Contains(out, key) {
		t.Fatalf("output leaked api key: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("output missing redaction marker: %s", out)
	}
}

func TestLoggerRedactsSensitiveMapKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	logger.Warn(context.Background(), "config loaded", "config", map[string]any{
		"authorization": "Bearer abc",
		"model":         "gpt-4o",
	})
	out := buf.String()
	if strings.Contains(out, "Bearer abc") {
		t.Fatalf("output leaked authorization header: %s", out)
	}
	if !strings.Contains(out, "gpt-4o") {
		t.Fatalf("output dropped non-sensitive value: %s", out)
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := AddRequestID(context.Background(), "req-123")
	ctx = AddChatID(ctx, "chat-456")
	logger.Info(ctx, "tool call allowed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["request_id"] != "req-123" {
		t.Fatalf("request_id = %v", record["request_id"])
	}
	if record["chat_id"] != "chat-456" {
		t.Fatalf("chat_id = %v", record["chat_id"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	logger.Warn(context.Background(), "visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("below-level records were emitted: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestNewMetricsWithRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.ToolCallsEvaluated.WithLabelValues("sendEmail", "blocked").Inc()
	m.SanitizationRounds.Observe(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "archestra_tool_calls_evaluated_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("archestra_tool_calls_evaluated_total not registered")
	}
}
