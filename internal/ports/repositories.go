package ports

import (
	"context"
	"time"

	"github.com/longregen/memoir/internal/domain/models"
)

// ActivePromptRepository defines operations over a user's active prompts.
// Every call is scoped to a single user.
type ActivePromptRepository interface {
	ListActive(ctx context.Context, userID string) ([]*models.ActivePrompt, error)
	GetActiveByID(ctx context.Context, userID, id string) (*models.ActivePrompt, error)
	GetActiveByText(ctx context.Context, userID, text string) (*models.ActivePrompt, error)
	// InsertActive assigns an ID when prompt.ID is empty. Tier 0 prompts are rejected.
	InsertActive(ctx context.Context, prompt *models.ActivePrompt) (*models.ActivePrompt, error)
	UpdateActive(ctx context.Context, userID, id string, update models.PromptUpdate) error
	// IncrementRejection atomically adds one to the rejection counter (skip_count, or
	// shown_count on legacy rows), sets last_shown_at and returns the updated prompt.
	IncrementRejection(ctx context.Context, userID, id string, shownAt time.Time) (*models.ActivePrompt, error)
	DeleteActive(ctx context.Context, userID, id string) error
	// ListExpiredActive is used by the expiry sweep only
	ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]*models.ActivePrompt, error)
}

// PromptHistoryRepository defines operations over archived prompts
type PromptHistoryRepository interface {
	// AppendHistory fails with domain.ErrAlreadyArchived if the prompt already has an entry
	AppendHistory(ctx context.Context, entry *models.PromptHistoryEntry) error
	ListHistory(ctx context.Context, userID string) ([]*models.PromptHistoryEntry, error)
}

// StoryReader is a read-only view of a user's recorded stories
type StoryReader interface {
	ListStories(ctx context.Context, userID string) ([]*models.Story, error)
}

// ProfileReader is a read-only view of user profiles
type ProfileReader interface {
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)
}

// PromptRepository is the only component allowed to touch persistent storage
type PromptRepository interface {
	ActivePromptRepository
	PromptHistoryRepository
	StoryReader
	ProfileReader
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes a function within a database transaction
	// If the function returns an error, the transaction is rolled back
	// Otherwise, the transaction is committed
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator generates unique IDs for entities
type IDGenerator interface {
	// GeneratePromptID generates a new active prompt ID (ap_xxx)
	GeneratePromptID() string

	// GenerateHistoryID generates a new prompt history entry ID (aph_xxx)
	GenerateHistoryID() string

	// GenerateRequestID generates a new request ID (areq_xxx)
	GenerateRequestID() string
}
