package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
)

// StoryRepository reads stories and profiles written by the recording service
type StoryRepository struct {
	BaseRepository
}

func NewStoryRepository(pool *pgxpool.Pool) *StoryRepository {
	return &StoryRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *StoryRepository) ListStories(ctx context.Context, userID string) ([]*models.Story, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, story_text, story_year, emotions, entities, created_at
		FROM memoir_stories
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := make([]*models.Story, 0)
	for rows.Next() {
		var s models.Story
		var storyYear sql.NullInt32
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.StoryText,
			&storyYear,
			&s.Emotions,
			&s.Entities,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		s.StoryYear = getIntPtr(storyYear)
		stories = append(stories, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stories: %w", err)
	}
	return stories, nil
}

func (r *StoryRepository) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT id, birth_year FROM memoir_users WHERE id = $1`

	var u models.UserProfile
	var birthYear sql.NullInt32
	if err := r.conn(ctx).QueryRow(ctx, query, userID).Scan(&u.ID, &birthYear); err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.BirthYear = getIntPtr(birthYear)
	return &u, nil
}
