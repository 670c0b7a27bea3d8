package ports

import (
	"context"
	"time"

	"github.com/longregen/memoir/internal/domain/models"
)

// PromptValidator enforces prompt content-quality rules
type PromptValidator interface {
	IsValid(text string) bool
	// Validate returns nil or a domain error naming the rule that failed
	Validate(text string) error
}

// PromptAnchor is what a generated prompt is about
type PromptAnchor struct {
	Entity  string
	Emotion string
	Year    *int
}

// PromptWriter turns a story and an anchor into candidate prompt text.
// Implementations may call a language model; the engine validates whatever comes back.
type PromptWriter interface {
	Write(ctx context.Context, story *models.Story, anchor PromptAnchor) (string, error)
}

// PromptGenerator produces a prompt when no eligible active prompt exists
type PromptGenerator interface {
	Generate(ctx context.Context, userID string) (*models.ActivePrompt, error)
}

// PromptSelector chooses the next prompt for a user
type PromptSelector interface {
	GetNext(ctx context.Context, userID string) (*models.ActivePrompt, error)
}

// SkipResult is returned by PromptLifecycle.Skip
type SkipResult struct {
	Retired    bool
	Prompt     *models.ActivePrompt // state after the skip
	History    *models.PromptHistoryEntry
	NextPrompt *models.ActivePrompt
}

// AnswerResult is returned by PromptLifecycle.Answer
type AnswerResult struct {
	History    *models.PromptHistoryEntry
	NextPrompt *models.ActivePrompt
}

// PromptLifecycle applies user feedback to prompts
type PromptLifecycle interface {
	Skip(ctx context.Context, userID string, ref models.PromptRef) (*SkipResult, error)
	Answer(ctx context.Context, userID string, ref models.PromptRef) (*AnswerResult, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// TokenVerifier maps a bearer token to a user ID or fails
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Clock is injected where tests need to control the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
