package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Geetk172/archestra/pkg/models"
)

type agentRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "name is required")
		return
	}
	now := time.Now().UTC()
	agent := &models.Agent{ID: uuid.NewString(), Name: req.Name, CreatedAt: now, UpdatedAt: now}
	if err := s.stores.Agents.Create(r.Context(), agent); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.stores.Agents.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.stores.Agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "name is required")
		return
	}
	agent, err := s.stores.Agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	agent.Name = req.Name
	agent.UpdatedAt = time.Now().UTC()
	if err := s.stores.Agents.Update(r.Context(), agent); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.Agents.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toolRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// validateToolParameters compiles the declared parameters as a JSON
// schema so broken policies cannot be traced back to an unparseable
// tool definition later.
func validateToolParameters(params json.RawMessage) error {
	if len(params) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-parameters.json", bytes.NewReader(params)); err != nil {
		return err
	}
	_, err := compiler.Compile("tool-parameters.json")
	return err
}

func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "name is required")
		return
	}
	if err := validateToolParameters(req.Parameters); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "invalid parameters schema: "+err.Error())
		return
	}
	agent, err := s.stores.Agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tool := &models.Tool{
		ID:          uuid.NewString(),
		AgentID:     agent.ID,
		Name:        req.Name,
		Description: req.Description,
		Parameters:  req.Parameters,
	}
	if err := s.stores.Tools.Create(r.Context(), tool); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tool)
}

func (s *Server) handleListAgentTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.stores.Tools.ListForAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	tool, err := s.stores.Tools.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (s *Server) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "name is required")
		return
	}
	if err := validateToolParameters(req.Parameters); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "invalid parameters schema: "+err.Error())
		return
	}
	tool, err := s.stores.Tools.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tool.Name = req.Name
	tool.Description = req.Description
	tool.Parameters = req.Parameters
	if err := s.stores.Tools.Update(r.Context(), tool); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.Tools.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
