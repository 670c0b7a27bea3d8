package handlers

import (
	"net/http"
	"strings"

	"github.com/longregen/memoir/internal/adapters/http/dto"
	"github.com/longregen/memoir/internal/adapters/http/middleware"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

type PromptsHandler struct {
	selector  ports.PromptSelector
	lifecycle ports.PromptLifecycle
	log       *logger.Logger
}

func NewPromptsHandler(selector ports.PromptSelector, lifecycle ports.PromptLifecycle, log *logger.Logger) *PromptsHandler {
	return &PromptsHandler{selector: selector, lifecycle: lifecycle, log: log}
}

// Next handles GET /api/prompts/next
func (h *PromptsHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	prompt, err := h.selector.GetNext(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, dto.NextPromptResponse{Prompt: dto.FromActivePrompt(prompt)}, http.StatusOK)
}

// Skip handles POST /api/prompts/skip
func (h *PromptsHandler) Skip(w http.ResponseWriter, r *http.Request) {
	ref, ok := decodeRef(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.Skip(r.Context(), middleware.GetUserID(r.Context()), ref)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, dto.SkipPromptResponse{
		Success:    true,
		Retired:    result.Retired,
		NextPrompt: dto.FromActivePrompt(result.NextPrompt),
	}, http.StatusOK)
}

// Answer handles POST /api/prompts/answer
func (h *PromptsHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ref, ok := decodeRef(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.Answer(r.Context(), middleware.GetUserID(r.Context()), ref)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, dto.AnswerPromptResponse{
		Success:    true,
		History:    dto.FromHistoryEntry(result.History),
		NextPrompt: dto.FromActivePrompt(result.NextPrompt),
	}, http.StatusOK)
}

func decodeRef(w http.ResponseWriter, r *http.Request) (models.PromptRef, bool) {
	req, ok := decodeJSON[dto.PromptRefRequest](r, w)
	if !ok {
		return models.PromptRef{}, false
	}
	return models.PromptRef{
		PromptID:   strings.TrimSpace(req.PromptID),
		PromptText: req.PromptText,
	}, true
}
