package models

import (
	"strings"
	"testing"
	"time"
)

type lengthChecker struct{ max int }

func (c lengthChecker) IsValid(text string) bool {
	return text != "" && len(strings.Fields(text)) <= c.max
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      int
		want    Tier
		wantErr bool
	}{
		{in: 0, want: TierDecade},
		{in: 1, want: TierStory},
		{in: 3, want: TierCurated},
		{in: -1, wantErr: true},
		{in: 4, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTier(%d) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTier(%d) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestTier_Persistable(t *testing.T) {
	if TierDecade.Persistable() {
		t.Error("decade prompts must never be stored")
	}
	for _, tier := range []Tier{TierStory, TierPersonal, TierCurated} {
		if !tier.Persistable() {
			t.Errorf("tier %s should be persistable", tier)
		}
	}
	if Tier(9).Persistable() {
		t.Error("unknown tier should not be persistable")
	}
	if Tier(9).String() != "tier(9)" {
		t.Errorf("unexpected string for unknown tier: %s", Tier(9))
	}
}

func TestActivePrompt_RejectionCount(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	p := NewActivePrompt("ap_1", "user_1", "Where did you learn to swim?", TierStory, 50)
	if p.HasLegacyCounter() {
		t.Fatal("new prompts track skips in SkipCount")
	}
	if got := p.IncrementRejection(at); got != 1 {
		t.Errorf("expected 1 after first skip, got %d", got)
	}
	if p.ShownCount != 0 {
		t.Errorf("legacy counter should be untouched, got %d", p.ShownCount)
	}
	if p.LastShownAt == nil || !p.LastShownAt.Equal(at) {
		t.Errorf("LastShownAt not stamped: %v", p.LastShownAt)
	}

	legacy := &ActivePrompt{ID: "ap_2", ShownCount: 2}
	if !legacy.HasLegacyCounter() {
		t.Fatal("nil SkipCount means legacy counter")
	}
	if got := legacy.IncrementRejection(at); got != 3 {
		t.Errorf("expected legacy count 3, got %d", got)
	}
	if legacy.SkipCount != nil {
		t.Error("IncrementRejection must not create SkipCount on legacy rows")
	}
}

func TestActivePrompt_IsEligible(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	checker := lengthChecker{max: 5}

	tests := []struct {
		name   string
		mutate func(*ActivePrompt)
		want   bool
	}{
		{name: "plain", mutate: func(*ActivePrompt) {}, want: true},
		{name: "locked", mutate: func(p *ActivePrompt) { p.IsLocked = true }},
		{name: "expired", mutate: func(p *ActivePrompt) { p.ExpiresAt = &past }},
		{name: "expires now", mutate: func(p *ActivePrompt) { p.ExpiresAt = &now }},
		{name: "expires later", mutate: func(p *ActivePrompt) { p.ExpiresAt = &future }, want: true},
		{name: "too long", mutate: func(p *ActivePrompt) { p.PromptText = "one two three four five six" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewActivePrompt("ap_1", "user_1", "Who taught you to cook?", TierStory, 50)
			tt.mutate(p)
			if got := p.IsEligible(now, checker); got != tt.want {
				t.Errorf("IsEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivePrompt_CloneIsDeep(t *testing.T) {
	year := 1975
	at := time.Now()
	p := NewActivePrompt("ap_1", "user_1", "text", TierStory, 50)
	p.AnchorYear = &year
	p.ExpiresAt = &at

	c := p.Clone()
	*c.SkipCount = 7
	*c.AnchorYear = 2000
	*c.ExpiresAt = at.Add(time.Hour)

	if p.RejectionCount() != 0 || *p.AnchorYear != 1975 || !p.ExpiresAt.Equal(at) {
		t.Error("mutating the clone changed the original")
	}
	var nilPrompt *ActivePrompt
	if nilPrompt.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestPromptUpdate_Apply(t *testing.T) {
	if !(PromptUpdate{}).IsEmpty() {
		t.Error("zero update should be empty")
	}

	p := NewActivePrompt("ap_1", "user_1", "old", TierStory, 10)
	text := "new"
	locked := true
	skips := 2
	u := PromptUpdate{PromptText: &text, IsLocked: &locked, SkipCount: &skips}
	if u.IsEmpty() {
		t.Fatal("update with fields is not empty")
	}
	u.Apply(p)

	if p.PromptText != "new" || !p.IsLocked || p.RejectionCount() != 2 {
		t.Errorf("update not applied: %+v", p)
	}
	if p.PromptScore != 10 {
		t.Errorf("untouched field changed: %v", p.PromptScore)
	}
	skips = 5
	if p.RejectionCount() != 2 {
		t.Error("Apply must copy pointer fields")
	}
}

func TestPromptRef_IsZero(t *testing.T) {
	if !(PromptRef{}).IsZero() {
		t.Error("empty ref should be zero")
	}
	if (PromptRef{PromptText: "x"}).IsZero() || (PromptRef{PromptID: "ap_1"}).IsZero() {
		t.Error("ref with id or text is not zero")
	}
}

func TestActivePrompt_IsPersisted(t *testing.T) {
	if (&ActivePrompt{}).IsPersisted() {
		t.Error("prompt without id is synthesized")
	}
	if !(&ActivePrompt{ID: "ap_1"}).IsPersisted() {
		t.Error("prompt with id is persisted")
	}
}
