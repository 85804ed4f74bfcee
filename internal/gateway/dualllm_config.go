package gateway

import (
	"net/http"
	"time"

	"github.com/Geetk172/archestra/pkg/models"
)

func (s *Server) handleGetDualLLMConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.stores.DualLLM.GetConfig(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type dualLLMConfigRequest struct {
	MainAgentPrompt        string `json:"main_agent_prompt"`
	QuarantinedAgentPrompt string `json:"quarantined_agent_prompt"`
	SummaryPrompt          string `json:"summary_prompt"`
	MaxRounds              int    `json:"max_rounds"`
}

func (s *Server) handleUpdateDualLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req dualLLMConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, "malformed body")
		return
	}
	cfg := &models.DualLLMConfig{
		ID:                     models.DualLLMConfigID,
		MainAgentPrompt:        req.MainAgentPrompt,
		QuarantinedAgentPrompt: req.QuarantinedAgentPrompt,
		SummaryPrompt:          req.SummaryPrompt,
		MaxRounds:              req.MaxRounds,
		UpdatedAt:              time.Now().UTC(),
	}
	if err := s.stores.DualLLM.UpdateConfig(r.Context(), cfg); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
