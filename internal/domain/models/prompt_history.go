package models

import (
	"fmt"
	"time"
)

// PromptOutcome is the terminal fate of an archived prompt.
type PromptOutcome string

const (
	OutcomeSkipped  PromptOutcome = "skipped"
	OutcomeAnswered PromptOutcome = "answered"
	OutcomeExpired  PromptOutcome = "expired"
)

func ParseOutcome(s string) (PromptOutcome, error) {
	o := PromptOutcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown prompt outcome %q", s)
	}
	return o, nil
}

func (o PromptOutcome) Valid() bool {
	switch o {
	case OutcomeSkipped, OutcomeAnswered, OutcomeExpired:
		return true
	}
	return false
}

// PromptHistoryEntry is the immutable record written when a prompt leaves active storage.
type PromptHistoryEntry struct {
	ID         string        `json:"id"`
	PromptID   string        `json:"prompt_id"`
	UserID     string        `json:"user_id"`
	PromptText string        `json:"prompt_text"`
	Tier       Tier          `json:"tier"`
	Outcome    PromptOutcome `json:"outcome"`
	SkipCount  int           `json:"skip_count"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// NewHistoryEntry snapshots p at retirement.
func NewHistoryEntry(id string, p *ActivePrompt, outcome PromptOutcome, at time.Time) *PromptHistoryEntry {
	return &PromptHistoryEntry{
		ID:         id,
		PromptID:   p.ID,
		UserID:     p.UserID,
		PromptText: p.PromptText,
		Tier:       p.Tier,
		Outcome:    outcome,
		SkipCount:  p.RejectionCount(),
		ArchivedAt: at,
	}
}
