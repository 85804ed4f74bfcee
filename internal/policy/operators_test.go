package policy

import (
	"testing"

	"github.com/Geetk172/archestra/pkg/models"
)

func TestEvaluateStringOperators(t *testing.T) {
	tests := []struct {
		name  string
		op    models.Operator
		left  any
		right string
		want  bool
	}{
		{"contains hit", models.OperatorContains, "hello world", "lo wo", true},
		{"contains miss", models.OperatorContains, "hello", "xyz", false},
		{"notContains hit", models.OperatorNotContains, "hello", "xyz", true},
		{"notContains miss", models.OperatorNotContains, "hello", "ell", false},
		{"startsWith hit", models.OperatorStartsWith, "/home/user", "/home/", true},
		{"startsWith miss", models.OperatorStartsWith, "/tmp/x", "/home/", false},
		{"endsWith hit", models.OperatorEndsWith, "a@grafana.com", "@grafana.com", true},
		{"endsWith miss", models.OperatorEndsWith, "a@other.com", "@grafana.com", false},
		{"regex hit", models.OperatorRegex, "abc123", `[a-z]+\d+`, true},
		{"regex miss", models.OperatorRegex, "abc", `^\d+$`, false},
		{"regex unanchored", models.OperatorRegex, "xx-match-yy", "match", true},
		{"non-string left contains", models.OperatorContains, 42.0, "4", false},
		{"non-string left startsWith", models.OperatorStartsWith, map[string]any{"a": 1.0}, "a", false},
		{"non-string left endsWith", models.OperatorEndsWith, []any{"x"}, "x", false},
		{"nil left", models.OperatorContains, nil, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.op, tt.left, tt.right)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Evaluate(%s, %v, %q) = %v, want %v", tt.op, tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestEvaluateEquality(t *testing.T) {
	tests := []struct {
		name  string
		op    models.Operator
		left  any
		right string
		want  bool
	}{
		{"string equal", models.OperatorEqual, "abc", "abc", true},
		{"string not equal", models.OperatorEqual, "abc", "abd", false},
		{"number equal", models.OperatorEqual, 42.0, "42", true},
		{"number mismatch", models.OperatorEqual, 42.0, "43", false},
		{"bool equal", models.OperatorEqual, true, "true", true},
		{"object equal", models.OperatorEqual, map[string]any{"a": 1.0}, `{"a":1}`, true},
		{"notEqual hit", models.OperatorNotEqual, "abc", "xyz", true},
		{"notEqual miss", models.OperatorNotEqual, 7.0, "7", false},
		{"null equal", models.OperatorEqual, nil, "null", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.op, tt.left, tt.right)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Evaluate(%s, %v, %q) = %v, want %v", tt.op, tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestEvaluateBadRegex(t *testing.T) {
	if _, err := Evaluate(models.OperatorRegex, "input", "("); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
	// Non-string left with a bad pattern still surfaces the compile error
	// so the policy is skipped, not treated as unmatched.
	if _, err := Evaluate(models.OperatorRegex, 1.0, "("); err == nil {
		t.Fatal("expected error for invalid regex pattern with non-string operand")
	}
}

func TestEvaluateUnknownOperator(t *testing.T) {
	if _, err := Evaluate(models.Operator("between"), "x", "y"); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}
