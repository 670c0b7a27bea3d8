package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/ports"
)

const activePromptColumns = `id, user_id, prompt_text, tier, prompt_score, is_locked, expires_at,
	skip_count, shown_count, last_shown_at, anchor_entity, anchor_year, source_story_id, created_at`

type ActivePromptRepository struct {
	BaseRepository
	idGen ports.IDGenerator
}

func NewActivePromptRepository(pool *pgxpool.Pool, idGen ports.IDGenerator) *ActivePromptRepository {
	return &ActivePromptRepository{
		BaseRepository: NewBaseRepository(pool),
		idGen:          idGen,
	}
}

func (r *ActivePromptRepository) ListActive(ctx context.Context, userID string) ([]*models.ActivePrompt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + activePromptColumns + `
		FROM memoir_active_prompts
		WHERE user_id = $1
		ORDER BY tier DESC, prompt_score DESC, id ASC`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]*models.ActivePrompt, 0)
	for rows.Next() {
		p, err := scanActivePrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active prompts: %w", err)
	}
	return prompts, nil
}

func (r *ActivePromptRepository) GetActiveByID(ctx context.Context, userID, id string) (*models.ActivePrompt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + activePromptColumns + `
		FROM memoir_active_prompts
		WHERE user_id = $1 AND id = $2`

	p, err := scanActivePrompt(r.conn(ctx).QueryRow(ctx, query, userID, id))
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to get active prompt: %w", err)
	}
	return p, nil
}

// GetActiveByText matches prompt_text exactly. Duplicate texts resolve to the
// prompt the selector would rank first.
func (r *ActivePromptRepository) GetActiveByText(ctx context.Context, userID, text string) (*models.ActivePrompt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + activePromptColumns + `
		FROM memoir_active_prompts
		WHERE user_id = $1 AND prompt_text = $2
		ORDER BY tier DESC, prompt_score DESC, id ASC
		LIMIT 1`

	p, err := scanActivePrompt(r.conn(ctx).QueryRow(ctx, query, userID, text))
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to get active prompt by text: %w", err)
	}
	return p, nil
}

func (r *ActivePromptRepository) InsertActive(ctx context.Context, prompt *models.ActivePrompt) (*models.ActivePrompt, error) {
	if !prompt.Tier.Persistable() {
		return nil, fmt.Errorf("%w: tier %d cannot be stored", domain.ErrInvalidTier, int(prompt.Tier))
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	p := prompt.Clone()
	if p.ID == "" {
		p.ID = r.idGen.GeneratePromptID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO memoir_active_prompts (
			id, user_id, prompt_text, tier, prompt_score, is_locked, expires_at,
			skip_count, shown_count, last_shown_at, anchor_entity, anchor_year, source_story_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		p.ID,
		p.UserID,
		p.PromptText,
		int(p.Tier),
		p.PromptScore,
		p.IsLocked,
		nullTime(p.ExpiresAt),
		nullIntPtr(p.SkipCount),
		p.ShownCount,
		nullTime(p.LastShownAt),
		nullString(p.AnchorEntity),
		nullIntPtr(p.AnchorYear),
		nullString(p.SourceStoryID),
		p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert active prompt: %w", err)
	}
	return p, nil
}

func (r *ActivePromptRepository) UpdateActive(ctx context.Context, userID, id string, update models.PromptUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.PromptText != nil {
		add("prompt_text", *update.PromptText)
	}
	if update.PromptScore != nil {
		add("prompt_score", *update.PromptScore)
	}
	if update.IsLocked != nil {
		add("is_locked", *update.IsLocked)
	}
	if update.ExpiresAt != nil {
		add("expires_at", *update.ExpiresAt)
	}
	if update.SkipCount != nil {
		add("skip_count", *update.SkipCount)
	}
	if update.ShownCount != nil {
		add("shown_count", *update.ShownCount)
	}
	if update.LastShownAt != nil {
		add("last_shown_at", *update.LastShownAt)
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(`
		UPDATE memoir_active_prompts
		SET %s
		WHERE id = $%d AND user_id = $%d`, strings.Join(sets, ", "), len(args)-1, len(args))

	result, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update active prompt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPromptNotFound
	}
	return nil
}

// IncrementRejection bumps the counter in one statement so the row lock taken by
// UPDATE serializes concurrent skips of the same prompt.
func (r *ActivePromptRepository) IncrementRejection(ctx context.Context, userID, id string, shownAt time.Time) (*models.ActivePrompt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE memoir_active_prompts
		SET skip_count = CASE WHEN skip_count IS NOT NULL THEN skip_count + 1 ELSE NULL END,
			shown_count = CASE WHEN skip_count IS NULL THEN shown_count + 1 ELSE shown_count END,
			last_shown_at = $3
		WHERE id = $1 AND user_id = $2
		RETURNING ` + activePromptColumns

	p, err := scanActivePrompt(r.conn(ctx).QueryRow(ctx, query, id, userID, shownAt))
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to increment rejection count: %w", err)
	}
	return p, nil
}

func (r *ActivePromptRepository) DeleteActive(ctx context.Context, userID, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM memoir_active_prompts WHERE id = $1 AND user_id = $2`

	result, err := r.conn(ctx).Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete active prompt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPromptNotFound
	}
	return nil
}

func (r *ActivePromptRepository) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]*models.ActivePrompt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + activePromptColumns + `
		FROM memoir_active_prompts
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC, id ASC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]*models.ActivePrompt, 0)
	for rows.Next() {
		p, err := scanActivePrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired prompts: %w", err)
	}
	return prompts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivePrompt(row scanner) (*models.ActivePrompt, error) {
	var p models.ActivePrompt
	var tier int
	var expiresAt, lastShownAt sql.NullTime
	var skipCount, anchorYear sql.NullInt32
	var anchorEntity, sourceStoryID sql.NullString

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PromptText,
		&tier,
		&p.PromptScore,
		&p.IsLocked,
		&expiresAt,
		&skipCount,
		&p.ShownCount,
		&lastShownAt,
		&anchorEntity,
		&anchorYear,
		&sourceStoryID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Tier, err = models.ParseTier(tier); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTier, err)
	}
	p.ExpiresAt = getTimePtr(expiresAt)
	p.SkipCount = getIntPtr(skipCount)
	p.LastShownAt = getTimePtr(lastShownAt)
	p.AnchorEntity = getString(anchorEntity)
	p.AnchorYear = getIntPtr(anchorYear)
	p.SourceStoryID = getString(sourceStoryID)

	return &p, nil
}
