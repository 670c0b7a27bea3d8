package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/memoir/internal/ports"
)

// Store bundles the repositories behind ports.PromptRepository
type Store struct {
	*ActivePromptRepository
	*PromptHistoryRepository
	*StoryRepository
}

var _ ports.PromptRepository = (*Store)(nil)
var _ ports.TransactionManager = (*TransactionManager)(nil)

func NewStore(pool *pgxpool.Pool, idGen ports.IDGenerator) *Store {
	return &Store{
		ActivePromptRepository:  NewActivePromptRepository(pool, idGen),
		PromptHistoryRepository: NewPromptHistoryRepository(pool),
		StoryRepository:         NewStoryRepository(pool),
	}
}

// Connect opens a pool and verifies it with a ping
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
