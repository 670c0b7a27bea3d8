package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
)

type PromptHistoryRepository struct {
	BaseRepository
}

func NewPromptHistoryRepository(pool *pgxpool.Pool) *PromptHistoryRepository {
	return &PromptHistoryRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *PromptHistoryRepository) AppendHistory(ctx context.Context, entry *models.PromptHistoryEntry) error {
	if !entry.Outcome.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOutcome, entry.Outcome)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO memoir_prompt_history (
			id, prompt_id, user_id, prompt_text, tier, outcome, skip_count, archived_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		entry.ID,
		entry.PromptID,
		entry.UserID,
		entry.PromptText,
		int(entry.Tier),
		string(entry.Outcome),
		entry.SkipCount,
		entry.ArchivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyArchived
		}
		return fmt.Errorf("failed to append prompt history: %w", err)
	}
	return nil
}

func (r *PromptHistoryRepository) ListHistory(ctx context.Context, userID string) ([]*models.PromptHistoryEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, prompt_id, user_id, prompt_text, tier, outcome, skip_count, archived_at
		FROM memoir_prompt_history
		WHERE user_id = $1
		ORDER BY archived_at DESC, id ASC`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.PromptHistoryEntry, 0)
	for rows.Next() {
		var e models.PromptHistoryEntry
		var tier int
		var outcome string
		if err := rows.Scan(
			&e.ID,
			&e.PromptID,
			&e.UserID,
			&e.PromptText,
			&tier,
			&outcome,
			&e.SkipCount,
			&e.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prompt history: %w", err)
		}
		if e.Tier, err = models.ParseTier(tier); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTier, err)
		}
		if e.Outcome, err = models.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOutcome, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prompt history: %w", err)
	}
	return entries, nil
}
