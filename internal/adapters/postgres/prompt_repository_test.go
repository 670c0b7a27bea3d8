package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var activePromptCols = []string{
	"id", "user_id", "prompt_text", "tier", "prompt_score", "is_locked", "expires_at",
	"skip_count", "shown_count", "last_shown_at", "anchor_entity", "anchor_year", "source_story_id", "created_at",
}

func promptRow(rows *pgxmock.Rows, id string, tier int, score float64, skip sql.NullInt32, shown int) *pgxmock.Rows {
	return rows.AddRow(
		id, "user_1", "What did your first bicycle teach you?", tier, score, false,
		sql.NullTime{}, skip, shown, sql.NullTime{},
		sql.NullString{String: "bicycle", Valid: true}, sql.NullInt32{Int32: 1972, Valid: true},
		sql.NullString{String: "st_1", Valid: true}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestActivePromptRepository_ListActive(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{BaseRepository: BaseRepository{pool: nil}}

	rows := pgxmock.NewRows(activePromptCols)
	promptRow(rows, "ap_1", 2, 80, sql.NullInt32{Int32: 1, Valid: true}, 0)
	promptRow(rows, "ap_2", 1, 50, sql.NullInt32{}, 2)

	mock.ExpectQuery("SELECT (.+) FROM memoir_active_prompts").
		WithArgs("user_1").
		WillReturnRows(rows)

	prompts, err := repo.ListActive(setupMockContext(mock), "user_1")
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	assert.Equal(t, models.TierPersonal, prompts[0].Tier)
	assert.Equal(t, 1, prompts[0].RejectionCount())
	assert.Equal(t, "bicycle", prompts[0].AnchorEntity)
	require.NotNil(t, prompts[0].AnchorYear)
	assert.Equal(t, 1972, *prompts[0].AnchorYear)
	assert.Nil(t, prompts[0].ExpiresAt)

	// legacy row falls back to shown_count
	assert.True(t, prompts[1].HasLegacyCounter())
	assert.Equal(t, 2, prompts[1].RejectionCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_ListActive_InvalidTier(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	rows := pgxmock.NewRows(activePromptCols)
	promptRow(rows, "ap_1", 7, 80, sql.NullInt32{Int32: 0, Valid: true}, 0)

	mock.ExpectQuery("SELECT (.+) FROM memoir_active_prompts").
		WithArgs("user_1").
		WillReturnRows(rows)

	_, err := repo.ListActive(setupMockContext(mock), "user_1")
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestActivePromptRepository_GetActiveByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	mock.ExpectQuery("SELECT (.+) FROM memoir_active_prompts").
		WithArgs("user_1", "ap_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetActiveByID(setupMockContext(mock), "user_1", "ap_missing")
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_GetActiveByText(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	rows := pgxmock.NewRows(activePromptCols)
	promptRow(rows, "ap_1", 1, 50, sql.NullInt32{Int32: 0, Valid: true}, 0)

	mock.ExpectQuery("WHERE user_id = \\$1 AND prompt_text = \\$2").
		WithArgs("user_1", "What did your first bicycle teach you?").
		WillReturnRows(rows)

	p, err := repo.GetActiveByText(setupMockContext(mock), "user_1", "What did your first bicycle teach you?")
	require.NoError(t, err)
	assert.Equal(t, "ap_1", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_InsertActive_AssignsID(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{idGen: fixedIDs{prompt: "ap_new"}}

	prompt := models.NewActivePrompt("", "user_1", "What did the lake smell like?", models.TierStory, 50)

	mock.ExpectExec("INSERT INTO memoir_active_prompts").
		WithArgs("ap_new", "user_1", "What did the lake smell like?", 1, 50.0, false,
			sql.NullTime{}, sql.NullInt32{Int32: 0, Valid: true}, 0, sql.NullTime{},
			sql.NullString{}, sql.NullInt32{}, sql.NullString{}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := repo.InsertActive(setupMockContext(mock), prompt)
	require.NoError(t, err)
	assert.Equal(t, "ap_new", saved.ID)
	assert.Empty(t, prompt.ID, "input prompt should not be mutated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_InsertActive_RejectsDecadeTier(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{idGen: fixedIDs{prompt: "ap_new"}}

	prompt := models.NewActivePrompt("", "user_1", "What do you remember most from the 1970s?", models.TierDecade, 0)

	_, err := repo.InsertActive(setupMockContext(mock), prompt)
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_UpdateActive(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	locked := true
	score := 75.5
	mock.ExpectExec("UPDATE memoir_active_prompts").
		WithArgs(75.5, true, "ap_1", "user_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateActive(setupMockContext(mock), "user_1", "ap_1", models.PromptUpdate{
		PromptScore: &score,
		IsLocked:    &locked,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_UpdateActive_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	locked := true
	mock.ExpectExec("UPDATE memoir_active_prompts").
		WithArgs(true, "ap_1", "user_2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateActive(setupMockContext(mock), "user_2", "ap_1", models.PromptUpdate{IsLocked: &locked})
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
}

func TestActivePromptRepository_UpdateActive_EmptyIsNoop(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	err := repo.UpdateActive(setupMockContext(mock), "user_1", "ap_1", models.PromptUpdate{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_IncrementRejection(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}
	shownAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(activePromptCols)
	promptRow(rows, "ap_1", 1, 50, sql.NullInt32{Int32: 3, Valid: true}, 0)

	mock.ExpectQuery("UPDATE memoir_active_prompts\\s+SET skip_count = CASE").
		WithArgs("ap_1", "user_1", shownAt).
		WillReturnRows(rows)

	p, err := repo.IncrementRejection(setupMockContext(mock), "user_1", "ap_1", shownAt)
	require.NoError(t, err)
	assert.Equal(t, 3, p.RejectionCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_IncrementRejection_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}
	shownAt := time.Now()

	mock.ExpectQuery("UPDATE memoir_active_prompts").
		WithArgs("ap_1", "user_other", shownAt).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.IncrementRejection(setupMockContext(mock), "user_other", "ap_1", shownAt)
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
}

func TestActivePromptRepository_DeleteActive(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}

	mock.ExpectExec("DELETE FROM memoir_active_prompts").
		WithArgs("ap_1", "user_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM memoir_active_prompts").
		WithArgs("ap_1", "user_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := setupMockContext(mock)
	assert.NoError(t, repo.DeleteActive(ctx, "user_1", "ap_1"))
	assert.ErrorIs(t, repo.DeleteActive(ctx, "user_1", "ap_1"), domain.ErrPromptNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePromptRepository_ListExpiredActive(t *testing.T) {
	mock := newMock(t)
	repo := &ActivePromptRepository{}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(activePromptCols)
	promptRow(rows, "ap_old", 3, 90, sql.NullInt32{Int32: 0, Valid: true}, 0)

	mock.ExpectQuery("WHERE expires_at IS NOT NULL AND expires_at <= \\$1").
		WithArgs(now, 100).
		WillReturnRows(rows)

	prompts, err := repo.ListExpiredActive(setupMockContext(mock), now, 100)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "ap_old", prompts[0].ID)
}

func TestPromptHistoryRepository_AppendHistory(t *testing.T) {
	mock := newMock(t)
	repo := &PromptHistoryRepository{}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	entry := &models.PromptHistoryEntry{
		ID: "aph_1", PromptID: "ap_1", UserID: "user_1", PromptText: "text",
		Tier: models.TierStory, Outcome: models.OutcomeSkipped, SkipCount: 3, ArchivedAt: at,
	}

	mock.ExpectExec("INSERT INTO memoir_prompt_history").
		WithArgs("aph_1", "ap_1", "user_1", "text", 1, "skipped", 3, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.AppendHistory(setupMockContext(mock), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptHistoryRepository_AppendHistory_Duplicate(t *testing.T) {
	mock := newMock(t)
	repo := &PromptHistoryRepository{}

	entry := &models.PromptHistoryEntry{
		ID: "aph_2", PromptID: "ap_1", UserID: "user_1", PromptText: "text",
		Tier: models.TierStory, Outcome: models.OutcomeSkipped, SkipCount: 3, ArchivedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO memoir_prompt_history").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := repo.AppendHistory(setupMockContext(mock), entry)
	assert.ErrorIs(t, err, domain.ErrAlreadyArchived)
}

func TestPromptHistoryRepository_AppendHistory_InvalidOutcome(t *testing.T) {
	mock := newMock(t)
	repo := &PromptHistoryRepository{}

	err := repo.AppendHistory(setupMockContext(mock), &models.PromptHistoryEntry{Outcome: "ignored"})
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptHistoryRepository_ListHistory(t *testing.T) {
	mock := newMock(t)
	repo := &PromptHistoryRepository{}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "prompt_id", "user_id", "prompt_text", "tier", "outcome", "skip_count", "archived_at"}).
		AddRow("aph_1", "ap_1", "user_1", "text", 1, "answered", 1, at)

	mock.ExpectQuery("FROM memoir_prompt_history").
		WithArgs("user_1").
		WillReturnRows(rows)

	entries, err := repo.ListHistory(setupMockContext(mock), "user_1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeAnswered, entries[0].Outcome)
	assert.Equal(t, models.TierStory, entries[0].Tier)
}

func TestStoryRepository_ListStories(t *testing.T) {
	mock := newMock(t)
	repo := &StoryRepository{}
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "user_id", "story_text", "story_year", "emotions", "entities", "created_at"}).
		AddRow("st_1", "user_1", "We drove to the coast.", sql.NullInt32{Int32: 1968, Valid: true},
			[]string{"joy"}, []string{"Grandpa Joe", "Chevy Impala"}, created)

	mock.ExpectQuery("FROM memoir_stories").
		WithArgs("user_1").
		WillReturnRows(rows)

	stories, err := repo.ListStories(setupMockContext(mock), "user_1")
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, []string{"Grandpa Joe", "Chevy Impala"}, stories[0].Entities)
	require.NotNil(t, stories[0].StoryYear)
	assert.Equal(t, 1968, *stories[0].StoryYear)
}

func TestStoryRepository_GetUser(t *testing.T) {
	mock := newMock(t)
	repo := &StoryRepository{}

	mock.ExpectQuery("FROM memoir_users").
		WithArgs("user_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "birth_year"}).AddRow("user_1", sql.NullInt32{Int32: 1950, Valid: true}))
	mock.ExpectQuery("FROM memoir_users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	ctx := setupMockContext(mock)
	u, err := repo.GetUser(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, u.BirthYear)
	assert.Equal(t, 1950, *u.BirthYear)

	_, err = repo.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStoryRepository_ListStories_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := &StoryRepository{}
	boom := errors.New("connection reset")

	mock.ExpectQuery("FROM memoir_stories").
		WithArgs("user_1").
		WillReturnError(boom)

	_, err := repo.ListStories(setupMockContext(mock), "user_1")
	assert.ErrorIs(t, err, boom)
}
