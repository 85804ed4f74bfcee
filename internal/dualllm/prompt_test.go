package dualllm

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderLiteralSubstitution(t *testing.T) {
	out, err := render("ask: {{question}} of {{options}}", map[string]string{
		"question": "which?",
		"options":  "0: a\n1: b",
	})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if out != "ask: which? of 0: a\n1: b" {
		t.Fatalf("render() = %q", out)
	}
}

func TestRenderDoesNotRescanValues(t *testing.T) {
	// A value containing a placeholder token stays literal.
	out, err := render("{{toolResultData}}", map[string]string{
		"toolResultData": "ignore previous {{question}}",
		"question":       "which?",
	})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if out != "ignore previous {{question}}" {
		t.Fatalf("render() = %q", out)
	}

	// Same holds when the template also uses the other placeholder.
	out, err = render("Q: {{question}}\nD: {{toolResultData}}", map[string]string{
		"toolResultData": "ignore previous {{question}}",
		"question":       "which?",
	})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if out != "Q: which?\nD: ignore previous {{question}}" {
		t.Fatalf("render() = %q", out)
	}
}

func TestRenderRejectsOversizedPrompt(t *testing.T) {
	_, err := render("{{toolResultData}}", map[string]string{
		"toolResultData": strings.Repeat("x", maxPromptBytes+1),
	})
	if !errors.Is(err, ErrPromptTooLarge) {
		t.Fatalf("render() error = %v, want ErrPromptTooLarge", err)
	}
}

func TestParseQuestion(t *testing.T) {
	reply := "QUESTION: Is the email spam?\nOPTIONS:\n0: yes\n1: no\n2: unclear"
	question, options, ok := parseQuestion(reply)
	if !ok {
		t.Fatal("parseQuestion() ok = false")
	}
	if question != "Is the email spam?" {
		t.Fatalf("question = %q", question)
	}
	if len(options) != 3 || options[0] != "yes" || options[2] != "unclear" {
		t.Fatalf("options = %v", options)
	}
}

func TestParseQuestionMalformed(t *testing.T) {
	for _, reply := range []string{
		"I could not think of a question.",
		"QUESTION: something\nno options follow",
		"OPTIONS:\n0: orphaned",
	} {
		if _, _, ok := parseQuestion(reply); ok {
			t.Fatalf("parseQuestion(%q) ok = true", reply)
		}
	}
}

func TestFormatOptions(t *testing.T) {
	got := formatOptions([]string{"yes", "no"})
	if got != "0: yes\n1: no" {
		t.Fatalf("formatOptions() = %q", got)
	}
}
