package dto

import (
	"time"

	"github.com/longregen/memoir/internal/domain/models"
)

// PromptResponse is the wire form of an active prompt. ID is null for the
// synthesized decade prompt.
type PromptResponse struct {
	ID            *string    `json:"id"`
	UserID        string     `json:"userId"`
	PromptText    string     `json:"promptText"`
	Tier          int        `json:"tier"`
	PromptScore   float64    `json:"promptScore"`
	IsLocked      bool       `json:"isLocked"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	SkipCount     *int       `json:"skipCount"`
	ShownCount    int        `json:"shownCount"`
	LastShownAt   *time.Time `json:"lastShownAt"`
	AnchorEntity  string     `json:"anchorEntity"`
	AnchorYear    *int       `json:"anchorYear"`
	SourceStoryID string     `json:"sourceStoryId,omitempty"`
}

func FromActivePrompt(p *models.ActivePrompt) *PromptResponse {
	if p == nil {
		return nil
	}
	resp := &PromptResponse{
		UserID:        p.UserID,
		PromptText:    p.PromptText,
		Tier:          int(p.Tier),
		PromptScore:   p.PromptScore,
		IsLocked:      p.IsLocked,
		ExpiresAt:     p.ExpiresAt,
		SkipCount:     p.SkipCount,
		ShownCount:    p.ShownCount,
		LastShownAt:   p.LastShownAt,
		AnchorEntity:  p.AnchorEntity,
		AnchorYear:    p.AnchorYear,
		SourceStoryID: p.SourceStoryID,
	}
	if p.IsPersisted() {
		id := p.ID
		resp.ID = &id
	}
	return resp
}

type PromptHistoryResponse struct {
	ID         string    `json:"id"`
	PromptID   string    `json:"promptId"`
	PromptText string    `json:"promptText"`
	Tier       int       `json:"tier"`
	Outcome    string    `json:"outcome"`
	SkipCount  int       `json:"skipCount"`
	ArchivedAt time.Time `json:"archivedAt"`
}

func FromHistoryEntry(e *models.PromptHistoryEntry) *PromptHistoryResponse {
	if e == nil {
		return nil
	}
	return &PromptHistoryResponse{
		ID:         e.ID,
		PromptID:   e.PromptID,
		PromptText: e.PromptText,
		Tier:       int(e.Tier),
		Outcome:    string(e.Outcome),
		SkipCount:  e.SkipCount,
		ArchivedAt: e.ArchivedAt,
	}
}

type NextPromptResponse struct {
	Prompt *PromptResponse `json:"prompt"`
}

// PromptRefRequest identifies a prompt by id or, failing that, by exact text
type PromptRefRequest struct {
	PromptID   string `json:"promptId,omitempty"`
	PromptText string `json:"promptText,omitempty"`
}

type SkipPromptResponse struct {
	Success    bool            `json:"success"`
	Retired    bool            `json:"retired"`
	NextPrompt *PromptResponse `json:"nextPrompt"`
}

type AnswerPromptResponse struct {
	Success    bool                   `json:"success"`
	History    *PromptHistoryResponse `json:"history"`
	NextPrompt *PromptResponse        `json:"nextPrompt"`
}
