package models

import (
	"fmt"
	"time"
)

// Tier ranks how personalized a prompt is. Higher tiers win selection.
type Tier int

const (
	// TierDecade is the generic decade fallback. It is synthesized on demand and never stored.
	TierDecade Tier = iota
	// TierStory is derived from the user's most recent story.
	TierStory
	// TierPersonal is produced by the external personalization job.
	TierPersonal
	// TierCurated is the highest-confidence personalized prompt.
	TierCurated
)

func ParseTier(v int) (Tier, error) {
	t := Tier(v)
	if !t.Valid() {
		return 0, fmt.Errorf("tier %d out of range", v)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	switch t {
	case TierDecade, TierStory, TierPersonal, TierCurated:
		return true
	}
	return false
}

// Persistable reports whether a prompt of this tier may be written to active storage.
func (t Tier) Persistable() bool {
	return t.Valid() && t != TierDecade
}

func (t Tier) String() string {
	switch t {
	case TierDecade:
		return "decade"
	case TierStory:
		return "story"
	case TierPersonal:
		return "personal"
	case TierCurated:
		return "curated"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ActivePrompt is a candidate question currently eligible to be shown to one user.
type ActivePrompt struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	PromptText    string     `json:"prompt_text"`
	Tier          Tier       `json:"tier"`
	PromptScore   float64    `json:"prompt_score"`
	IsLocked      bool       `json:"is_locked"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	SkipCount     *int       `json:"skip_count,omitempty"` // nil on rows created before the counter existed
	ShownCount    int        `json:"shown_count"`
	LastShownAt   *time.Time `json:"last_shown_at,omitempty"`
	AnchorEntity  string     `json:"anchor_entity,omitempty"`
	AnchorYear    *int       `json:"anchor_year,omitempty"`
	SourceStoryID string     `json:"source_story_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func NewActivePrompt(id, userID, text string, tier Tier, score float64) *ActivePrompt {
	zero := 0
	return &ActivePrompt{
		ID:          id,
		UserID:      userID,
		PromptText:  text,
		Tier:        tier,
		PromptScore: score,
		SkipCount:   &zero,
		CreatedAt:   time.Now(),
	}
}

// RejectionCount returns the skip counter, falling back to the legacy shown counter
// for rows that predate skip_count.
func (p *ActivePrompt) RejectionCount() int {
	if p.SkipCount != nil {
		return *p.SkipCount
	}
	return p.ShownCount
}

// HasLegacyCounter reports whether rejections are tracked in ShownCount.
func (p *ActivePrompt) HasLegacyCounter() bool {
	return p.SkipCount == nil
}

// IncrementRejection bumps whichever counter RejectionCount reads and stamps LastShownAt.
func (p *ActivePrompt) IncrementRejection(at time.Time) int {
	if p.SkipCount != nil {
		n := *p.SkipCount + 1
		p.SkipCount = &n
	} else {
		p.ShownCount++
	}
	shown := at
	p.LastShownAt = &shown
	return p.RejectionCount()
}

func (p *ActivePrompt) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// TextChecker is the part of the validator eligibility needs.
type TextChecker interface {
	IsValid(text string) bool
}

// IsEligible reports whether the prompt may be shown: unlocked, unexpired at now,
// and passing the content rules.
func (p *ActivePrompt) IsEligible(now time.Time, v TextChecker) bool {
	return !p.IsLocked && !p.IsExpired(now) && v.IsValid(p.PromptText)
}

// IsPersisted is false only for synthesized fallback prompts.
func (p *ActivePrompt) IsPersisted() bool {
	return p.ID != ""
}

// Clone returns a deep copy so callers can't mutate stored state.
func (p *ActivePrompt) Clone() *ActivePrompt {
	if p == nil {
		return nil
	}
	c := *p
	c.ExpiresAt = cloneTime(p.ExpiresAt)
	c.LastShownAt = cloneTime(p.LastShownAt)
	c.SkipCount = cloneInt(p.SkipCount)
	c.AnchorYear = cloneInt(p.AnchorYear)
	return &c
}

// PromptUpdate is a partial update; nil fields are left untouched.
type PromptUpdate struct {
	PromptText  *string
	PromptScore *float64
	IsLocked    *bool
	ExpiresAt   *time.Time
	SkipCount   *int
	ShownCount  *int
	LastShownAt *time.Time
}

func (u PromptUpdate) IsEmpty() bool {
	return u.PromptText == nil && u.PromptScore == nil && u.IsLocked == nil &&
		u.ExpiresAt == nil && u.SkipCount == nil && u.ShownCount == nil && u.LastShownAt == nil
}

// Apply writes the non-nil fields of u onto p.
func (u PromptUpdate) Apply(p *ActivePrompt) {
	if u.PromptText != nil {
		p.PromptText = *u.PromptText
	}
	if u.PromptScore != nil {
		p.PromptScore = *u.PromptScore
	}
	if u.IsLocked != nil {
		p.IsLocked = *u.IsLocked
	}
	if u.ExpiresAt != nil {
		p.ExpiresAt = cloneTime(u.ExpiresAt)
	}
	if u.SkipCount != nil {
		p.SkipCount = cloneInt(u.SkipCount)
	}
	if u.ShownCount != nil {
		p.ShownCount = *u.ShownCount
	}
	if u.LastShownAt != nil {
		p.LastShownAt = cloneTime(u.LastShownAt)
	}
}

// PromptRef identifies a prompt by id or, when the id is absent, by exact text.
type PromptRef struct {
	PromptID   string
	PromptText string
}

func (r PromptRef) IsZero() bool {
	return r.PromptID == "" && r.PromptText == ""
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
