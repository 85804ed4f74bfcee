// Package policy implements the guardrail evaluation engine: the operator
// table, the JSON attribute-path extractor, and the tool-invocation and
// trusted-data evaluators that consult agent-scoped policy rows.
package policy

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Geetk172/archestra/pkg/models"
)

// Evaluate applies an operator to a decoded JSON value and a policy value.
//
// equal/notEqual compare by structural JSON equality: the policy value is
// parsed as JSON when possible, else compared as a string. The string
// operators require a string left operand; any other type evaluates to
// false, never an error. The only error conditions are an unknown
// operator and a regex pattern that does not compile; callers skip the
// policy in both cases.
func Evaluate(op models.Operator, left any, right string) (bool, error) {
	switch op {
	case models.OperatorEqual:
		return jsonEqual(left, right), nil
	case models.OperatorNotEqual:
		return !jsonEqual(left, right), nil
	}

	s, ok := left.(string)
	if !ok {
		if op == models.OperatorRegex {
			// Still surface a bad pattern so the policy is skipped
			// consistently, not silently unmatched.
			if _, err := regexp.Compile(right); err != nil {
				return false, fmt.Errorf("compile policy regex: %w", err)
			}
		}
		if !op.Valid() {
			return false, fmt.Errorf("unknown operator %q", op)
		}
		return false, nil
	}

	switch op {
	case models.OperatorContains:
		return strings.Contains(s, right), nil
	case models.OperatorNotContains:
		return !strings.Contains(s, right), nil
	case models.OperatorStartsWith:
		return strings.HasPrefix(s, right), nil
	case models.OperatorEndsWith:
		return strings.HasSuffix(s, right), nil
	case models.OperatorRegex:
		// Patterns come from policy rows and are untrusted. Unanchored,
		// matching the source system's semantics.
		re, err := regexp.Compile(right)
		if err != nil {
			return false, fmt.Errorf("compile policy regex: %w", err)
		}
		return re.MatchString(s), nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// jsonEqual compares a decoded JSON value against a policy value string.
// The policy value is decoded as JSON when it parses ("42", "true",
// `{"a":1}`) so that numbers and booleans compare structurally; otherwise
// it is treated as a plain string.
func jsonEqual(left any, right string) bool {
	var rv any
	if err := json.Unmarshal([]byte(right), &rv); err != nil {
		rv = right
	}
	if reflect.DeepEqual(left, rv) {
		return true
	}
	// A policy value like "abc" is not valid JSON and decodes to the
	// string itself; a quoted policy value `"abc"` decodes identically.
	// Nothing further to normalise beyond that.
	return false
}
