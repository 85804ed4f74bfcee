package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Geetk172/archestra/pkg/models"
)

type invocationPolicyRequest struct {
	ToolID       string              `json:"tool_id"`
	Description  string              `json:"description"`
	ArgumentName string              `json:"argument_name"`
	Operator     models.Operator     `json:"operator"`
	Value        string              `json:"value"`
	Action       models.PolicyAction `json:"action"`
	BlockPrompt  string              `json:"block_prompt"`
}

func (req *invocationPolicyRequest) validate() string {
	switch {
	case strings.TrimSpace(req.ToolID) == "":
		return "tool_id is required"
	case strings.TrimSpace(req.ArgumentName) == "":
		return "argument_name is required"
	case !req.Operator.Valid():
		return "unknown operator"
	case !req.Action.Valid():
		return "unknown action"
	}
	return ""
}

func (s *Server) handleCreateInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	var req invocationPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, msg)
		return
	}
	if _, err := s.stores.Tools.Get(r.Context(), req.ToolID); err != nil {
		writeStoreError(w, err)
		return
	}
	p := &models.ToolInvocationPolicy{
		ID:           uuid.NewString(),
		ToolID:       req.ToolID,
		Description:  req.Description,
		ArgumentName: req.ArgumentName,
		Operator:     req.Operator,
		Value:        req.Value,
		Action:       req.Action,
		BlockPrompt:  req.BlockPrompt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.stores.InvocationPolicies.Create(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListInvocationPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.stores.InvocationPolicies.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Server) handleGetInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.stores.InvocationPolicies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	var req invocationPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, msg)
		return
	}
	p, err := s.stores.InvocationPolicies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p.ToolID = req.ToolID
	p.Description = req.Description
	p.ArgumentName = req.ArgumentName
	p.Operator = req.Operator
	p.Value = req.Value
	p.Action = req.Action
	p.BlockPrompt = req.BlockPrompt
	if err := s.stores.InvocationPolicies.Update(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.InvocationPolicies.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trustedPolicyRequest struct {
	ToolID        string          `json:"tool_id"`
	Description   string          `json:"description"`
	AttributePath string          `json:"attribute_path"`
	Operator      models.Operator `json:"operator"`
	Value         string          `json:"value"`
}

func (req *trustedPolicyRequest) validate() string {
	switch {
	case strings.TrimSpace(req.ToolID) == "":
		return "tool_id is required"
	case strings.TrimSpace(req.AttributePath) == "":
		return "attribute_path is required"
	case !req.Operator.Valid():
		return "unknown operator"
	}
	return ""
}

func (s *Server) handleCreateTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	var req trustedPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, msg)
		return
	}
	if _, err := s.stores.Tools.Get(r.Context(), req.ToolID); err != nil {
		writeStoreError(w, err)
		return
	}
	p := &models.TrustedDataPolicy{
		ID:            uuid.NewString(),
		ToolID:        req.ToolID,
		Description:   req.Description,
		AttributePath: req.AttributePath,
		Operator:      req.Operator,
		Value:         req.Value,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.stores.TrustedPolicies.Create(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListTrustedPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.stores.TrustedPolicies.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Server) handleGetTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.stores.TrustedPolicies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	var req trustedPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, msg)
		return
	}
	p, err := s.stores.TrustedPolicies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p.ToolID = req.ToolID
	p.Description = req.Description
	p.AttributePath = req.AttributePath
	p.Operator = req.Operator
	p.Value = req.Value
	if err := s.stores.TrustedPolicies.Update(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.TrustedPolicies.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.InvocationPolicies.Assign(r.Context(), r.PathValue("id"), r.PathValue("policyID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnassignInvocationPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.InvocationPolicies.Unassign(r.Context(), r.PathValue("id"), r.PathValue("policyID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAgentInvocationPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.stores.InvocationPolicies.ListForAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Server) handleAssignTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.TrustedPolicies.Assign(r.Context(), r.PathValue("id"), r.PathValue("policyID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnassignTrustedPolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.TrustedPolicies.Unassign(r.Context(), r.PathValue("id"), r.PathValue("policyID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAgentTrustedPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.stores.TrustedPolicies.ListForAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}
