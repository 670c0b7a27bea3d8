package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v3"
)

// setupMockContext creates a context with the mock as a transaction
// This allows the BaseRepository.conn() method to return the mock
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}

// fixedIDs is a deterministic ports.IDGenerator for repository tests
type fixedIDs struct {
	prompt  string
	history string
}

func (f fixedIDs) GeneratePromptID() string  { return f.prompt }
func (f fixedIDs) GenerateHistoryID() string { return f.history }
func (f fixedIDs) GenerateRequestID() string { return "areq_test" }
