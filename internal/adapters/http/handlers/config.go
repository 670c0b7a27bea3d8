package handlers

import (
	"net/http"

	"github.com/longregen/memoir/internal/config"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// PublicConfigResponse contains only the prompt rules clients may rely on
type PublicConfigResponse struct {
	MaxWords            int  `json:"maxWords"`
	RetirementThreshold int  `json:"retirementThreshold"`
	LLMEnabled          bool `json:"llmEnabled"`
}

// GetPublicConfig handles GET /api/config
func (h *ConfigHandler) GetPublicConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, &PublicConfigResponse{
		MaxWords:            h.cfg.Prompts.MaxWords,
		RetirementThreshold: h.cfg.Prompts.RetirementThreshold,
		LLMEnabled:          h.cfg.IsLLMConfigured(),
	}, http.StatusOK)
}
