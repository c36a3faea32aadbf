package scoping

import (
	"fmt"
	"strings"
)

// Scope is the structured problem scope returned by the AI.
type Scope struct {
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// RefinedStatement renders the scope as a "How might we" statement.
func (s Scope) RefinedStatement() string {
	area := s.Type
	if area == "" {
		area = "general innovation"
	}
	return fmt.Sprintf("How might we innovate on \"%s\"? This challenge will focus on the area of %s.",
		strings.ToLower(s.Description), area)
}

// ExtractScope looks for a scope in an inbound payload. work_scope wins,
// then final_spec.scope, then specification.scope. A scope needs a
// non-empty description.
func ExtractScope(payload map[string]any) (Scope, bool) {
	if payload == nil {
		return Scope{}, false
	}
	candidates := []any{
		payload["work_scope"],
		nested(payload, "final_spec", "scope"),
		nested(payload, "specification", "scope"),
	}
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		desc, _ := m["description"].(string)
		if desc == "" {
			// the first scope present decides
			return Scope{}, false
		}
		typ, _ := m["type"].(string)
		return Scope{Description: desc, Type: typ}, true
	}
	return Scope{}, false
}

func nested(m map[string]any, outer, inner string) any {
	o, ok := m[outer].(map[string]any)
	if !ok {
		return nil
	}
	return o[inner]
}
