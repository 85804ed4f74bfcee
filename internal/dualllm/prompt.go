package dualllm

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// maxPromptBytes bounds a rendered prompt. Oversized tool results would
// otherwise blow the quarantined context window.
const maxPromptBytes = 32 << 10

// ErrPromptTooLarge is returned when a rendered prompt exceeds
// maxPromptBytes.
var ErrPromptTooLarge = errors.New("rendered prompt exceeds 32 KiB")

// render substitutes {{placeholder}} tokens by literal string
// replacement in a single pass over the template. Values are never
// re-scanned for placeholders, so untrusted data cannot inject
// substitutions.
func render(template string, vars map[string]string) (string, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	// Replacer tries patterns in argument order at each position, so
	// longest key first keeps one placeholder from being a prefix hit
	// inside another.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	out := strings.NewReplacer(pairs...).Replace(template)
	if len(out) > maxPromptBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrPromptTooLarge, len(out))
	}
	return out, nil
}

var (
	questionRe = regexp.MustCompile(`(?m)^QUESTION:\s*(.+)$`)
	optionRe   = regexp.MustCompile(`^(\d+):\s*(.*)$`)
)

// parseQuestion extracts the QUESTION line and the numbered OPTIONS
// list from a privileged reply. ok is false when the reply does not
// follow the format, which terminates the loop gracefully.
func parseQuestion(reply string) (question string, options []string, ok bool) {
	m := questionRe.FindStringSubmatch(reply)
	if m == nil {
		return "", nil, false
	}
	question = strings.TrimSpace(m[1])

	inOptions := false
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "OPTIONS:") {
			inOptions = true
			continue
		}
		if !inOptions {
			continue
		}
		om := optionRe.FindStringSubmatch(line)
		if om == nil {
			if line == "" {
				continue
			}
			break
		}
		options = append(options, om[2])
	}
	if len(options) == 0 {
		return "", nil, false
	}
	return question, options, true
}

// formatOptions renders options as the "0: text" lines shown to the
// quarantined session.
func formatOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %s", i, opt)
	}
	return b.String()
}
