package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// pathSegment is one step of a parsed attribute path.
type pathSegment struct {
	field    string // field access; empty for pure index segments
	index    int    // array index, valid when hasIndex
	hasIndex bool
	wildcard bool // [*]
}

// ParsePath parses an attribute path such as "emails[*].from",
// "items[3].name.first" or "path" into segments. Bracket suffixes may be
// chained ("grid[0][1]").
func ParsePath(path string) ([]pathSegment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty attribute path")
	}
	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("invalid attribute path %q", path)
		}
		field := part
		var brackets []string
		if i := strings.IndexByte(part, '['); i >= 0 {
			field = part[:i]
			rest := part[i:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("invalid attribute path %q", path)
				}
				j := strings.IndexByte(rest, ']')
				if j < 0 {
					return nil, fmt.Errorf("unterminated bracket in attribute path %q", path)
				}
				brackets = append(brackets, rest[1:j])
				rest = rest[j+1:]
			}
		}
		if field == "" && len(segs) == 0 && len(brackets) == 0 {
			return nil, fmt.Errorf("invalid attribute path %q", path)
		}
		if field != "" {
			segs = append(segs, pathSegment{field: field})
		}
		for _, b := range brackets {
			if b == "*" {
				segs = append(segs, pathSegment{wildcard: true})
				continue
			}
			idx, err := strconv.Atoi(b)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid array index %q in attribute path %q", b, path)
			}
			segs = append(segs, pathSegment{index: idx, hasIndex: true})
		}
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("invalid attribute path %q", path)
	}
	return segs, nil
}

// ExtractLeaves resolves an attribute path against a decoded JSON document
// and returns every leaf value it reaches. Wildcard segments fan out over
// array elements. Paths that lead nowhere yield an empty slice, not an
// error; only a malformed path errors.
func ExtractLeaves(doc any, path string) ([]any, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	current := []any{doc}
	for _, seg := range segs {
		var next []any
		for _, node := range current {
			switch {
			case seg.wildcard:
				arr, ok := node.([]any)
				if !ok {
					continue
				}
				next = append(next, arr...)
			case seg.hasIndex:
				arr, ok := node.([]any)
				if !ok || seg.index >= len(arr) {
					continue
				}
				next = append(next, arr[seg.index])
			default:
				obj, ok := node.(map[string]any)
				if !ok {
					continue
				}
				v, ok := obj[seg.field]
				if !ok {
					continue
				}
				next = append(next, v)
			}
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// LookupArgument resolves a dotted argument name against a decoded tool
// arguments object. The dialect matches ExtractLeaves minus wildcards:
// argument names address exactly one scalar. The boolean reports whether
// the argument is present.
func LookupArgument(args map[string]any, name string) (any, bool) {
	segs, err := ParsePath(name)
	if err != nil {
		return nil, false
	}
	var node any = args
	for _, seg := range segs {
		switch {
		case seg.wildcard:
			return nil, false
		case seg.hasIndex:
			arr, ok := node.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			node = arr[seg.index]
		default:
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[seg.field]
			if !ok {
				return nil, false
			}
			node = v
		}
	}
	return node, true
}
