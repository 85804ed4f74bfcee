package policy

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return v
}

func TestExtractLeaves(t *testing.T) {
	doc := decode(t, `{
		"path": "/tmp/x",
		"emails": [
			{"from": "a@archestra.ai", "cc": ["x", "y"]},
			{"from": "b@archestra.ai"}
		],
		"items": [{"name": {"first": "Ada"}}, {"name": {"first": "Grace"}}],
		"grid": [[1, 2], [3, 4]],
		"count": 3
	}`)

	tests := []struct {
		name string
		path string
		want []any
	}{
		{"top-level field", "path", []any{"/tmp/x"}},
		{"wildcard fan-out", "emails[*].from", []any{"a@archestra.ai", "b@archestra.ai"}},
		{"index then fields", "items[1].name.first", []any{"Grace"}},
		{"nested wildcard under index", "emails[0].cc[*]", []any{"x", "y"}},
		{"chained brackets", "grid[1][0]", []any{3.0}},
		{"number leaf", "count", []any{3.0}},
		{"missing field", "nope", nil},
		{"index out of range", "emails[9].from", nil},
		{"wildcard over non-array", "path[*]", nil},
		{"field on non-object", "count.inner", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractLeaves(doc, tt.path)
			if err != nil {
				t.Fatalf("ExtractLeaves(%q) error = %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractLeaves(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractLeavesMalformedPath(t *testing.T) {
	doc := decode(t, `{"a": 1}`)
	for _, path := range []string{"", "a..b", "a[", "a[x]", "a[-1]", ".a"} {
		if _, err := ExtractLeaves(doc, path); err == nil {
			t.Fatalf("ExtractLeaves(%q) expected error", path)
		}
	}
}

func TestLookupArgument(t *testing.T) {
	args := decode(t, `{
		"to": "x@grafana.com",
		"options": {"retries": 2},
		"targets": ["a", "b"]
	}`).(map[string]any)

	if v, ok := LookupArgument(args, "to"); !ok || v != "x@grafana.com" {
		t.Fatalf("LookupArgument(to) = %v, %v", v, ok)
	}
	if v, ok := LookupArgument(args, "options.retries"); !ok || v != 2.0 {
		t.Fatalf("LookupArgument(options.retries) = %v, %v", v, ok)
	}
	if v, ok := LookupArgument(args, "targets[1]"); !ok || v != "b" {
		t.Fatalf("LookupArgument(targets[1]) = %v, %v", v, ok)
	}
	if _, ok := LookupArgument(args, "missing"); ok {
		t.Fatal("LookupArgument(missing) should report absent")
	}
	if _, ok := LookupArgument(args, "targets[*]"); ok {
		t.Fatal("wildcards are not valid in argument names")
	}
}
