package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
)

var (
	openAPIOnce sync.Once
	openAPIDoc  []byte
)

// handleOpenAPI serves a hand-maintained OpenAPI 3 document describing
// the public surface. Kept deliberately shallow: path inventory plus
// the error envelope, not full schema coverage.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	openAPIOnce.Do(func() {
		openAPIDoc, _ = json.MarshalIndent(openAPISpec(), "", "  ")
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDoc)
}

func openAPISpec() map[string]any {
	op := func(summary string) map[string]any {
		return map[string]any{"summary": summary}
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "archestra",
			"description": "Security-enforcing LLM proxy: tool-invocation policies, trusted-data policies, dual-LLM sanitisation.",
			"version":     "1.0.0",
		},
		"paths": map[string]any{
			"/api/chats": map[string]any{
				"post": op("Create an empty chat"),
				"get":  op("List chats with interactions"),
			},
			"/api/chats/{id}": map[string]any{
				"get": op("Get a chat with its interactions"),
			},
			"/v1/{provider}/chat/completions": map[string]any{
				"post": op("Guarded chat completion (requires x-archestra-chat-id header)"),
			},
			"/v1/{provider}/models": map[string]any{
				"get": op("Passthrough model list"),
			},
			"/api/agents": map[string]any{
				"post": op("Create an agent"),
				"get":  op("List agents"),
			},
			"/api/agents/{id}": map[string]any{
				"get":    op("Get an agent"),
				"put":    op("Rename an agent"),
				"delete": op("Delete an agent and its tools and policies"),
			},
			"/api/agents/{id}/tools": map[string]any{
				"post": op("Register a tool (parameters validated as JSON schema)"),
				"get":  op("List an agent's tools"),
			},
			"/api/tools/{id}": map[string]any{
				"get":    op("Get a tool"),
				"put":    op("Update a tool"),
				"delete": op("Delete a tool"),
			},
			"/api/tool-invocation-policies": map[string]any{
				"post": op("Create a tool-invocation policy"),
				"get":  op("List tool-invocation policies"),
			},
			"/api/tool-invocation-policies/{id}": map[string]any{
				"get":    op("Get a tool-invocation policy"),
				"put":    op("Update a tool-invocation policy"),
				"delete": op("Delete a tool-invocation policy"),
			},
			"/api/trusted-data-policies": map[string]any{
				"post": op("Create a trusted-data policy"),
				"get":  op("List trusted-data policies"),
			},
			"/api/trusted-data-policies/{id}": map[string]any{
				"get":    op("Get a trusted-data policy"),
				"put":    op("Update a trusted-data policy"),
				"delete": op("Delete a trusted-data policy"),
			},
			"/api/agents/{id}/tool-invocation-policies": map[string]any{
				"get": op("List tool-invocation policies assigned to an agent"),
			},
			"/api/agents/{id}/tool-invocation-policies/{policyId}": map[string]any{
				"post":   op("Assign a tool-invocation policy to an agent"),
				"delete": op("Unassign a tool-invocation policy from an agent"),
			},
			"/api/agents/{id}/trusted-data-policies": map[string]any{
				"get": op("List trusted-data policies assigned to an agent"),
			},
			"/api/agents/{id}/trusted-data-policies/{policyId}": map[string]any{
				"post":   op("Assign a trusted-data policy to an agent"),
				"delete": op("Unassign a trusted-data policy from an agent"),
			},
			"/api/dual-llm-config": map[string]any{
				"get": op("Get the dual-LLM prompt configuration"),
				"put": op("Update the dual-LLM prompt configuration"),
			},
			"/health":  map[string]any{"get": op("Liveness and database ping")},
			"/metrics": map[string]any{"get": op("Prometheus metrics")},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"message": map[string]any{"type": "string"},
								"type": map[string]any{
									"type": "string",
									"enum": []string{
										"invalid_request_error", "not_found",
										"tool_invocation_blocked", "configuration_error",
										"api_error",
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
