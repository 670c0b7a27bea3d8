package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/longregen/memoir/internal/adapters/http/middleware"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/ports"
)

// Helper function to add user context to requests
func addUserContext(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

type mockSelector struct {
	prompt *models.ActivePrompt
	err    error
	users  []string
}

func (m *mockSelector) GetNext(_ context.Context, userID string) (*models.ActivePrompt, error) {
	m.users = append(m.users, userID)
	return m.prompt, m.err
}

type mockLifecycle struct {
	skip    *ports.SkipResult
	answer  *ports.AnswerResult
	err     error
	lastRef models.PromptRef
	userID  string
}

func (m *mockLifecycle) Skip(_ context.Context, userID string, ref models.PromptRef) (*ports.SkipResult, error) {
	m.userID, m.lastRef = userID, ref
	return m.skip, m.err
}

func (m *mockLifecycle) Answer(_ context.Context, userID string, ref models.PromptRef) (*ports.AnswerResult, error) {
	m.userID, m.lastRef = userID, ref
	return m.answer, m.err
}

func (m *mockLifecycle) ExpireStale(context.Context, time.Time, int) (int, error) {
	return 0, m.err
}

func storyPrompt() *models.ActivePrompt {
	p := models.NewActivePrompt("ap_1", "user_1", "What did Lake Tahoe smell like?", models.TierStory, 50)
	p.AnchorEntity = "Lake Tahoe"
	return p
}

func decadePrompt() *models.ActivePrompt {
	p := models.NewActivePrompt("", "user_1", "What do you remember most from the 1990s?", models.TierDecade, 0)
	p.AnchorEntity = "1990s"
	year := 1990
	p.AnchorYear = &year
	return p
}
