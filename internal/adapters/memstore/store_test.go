package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s_%03d", prefix, g.n)
}

func (g *seqIDs) GeneratePromptID() string  { return g.next("ap") }
func (g *seqIDs) GenerateHistoryID() string { return g.next("aph") }
func (g *seqIDs) GenerateRequestID() string { return g.next("areq") }

func seed(t *testing.T, s *Store, id, userID string, tier models.Tier, score float64) *models.ActivePrompt {
	t.Helper()
	p, err := s.InsertActive(context.Background(), models.NewActivePrompt(id, userID, "Prompt "+id, tier, score))
	require.NoError(t, err)
	return p
}

func TestStore_ListActiveOrderingAndScope(t *testing.T) {
	s := New(&seqIDs{})
	seed(t, s, "ap_b", "user_1", models.TierStory, 90)
	seed(t, s, "ap_c", "user_1", models.TierPersonal, 10)
	seed(t, s, "ap_a", "user_1", models.TierStory, 90)
	seed(t, s, "ap_x", "user_2", models.TierCurated, 99)

	prompts, err := s.ListActive(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, prompts, 3)
	assert.Equal(t, "ap_c", prompts[0].ID)
	assert.Equal(t, "ap_a", prompts[1].ID)
	assert.Equal(t, "ap_b", prompts[2].ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New(&seqIDs{})
	seed(t, s, "ap_1", "user_1", models.TierStory, 50)

	p, err := s.GetActiveByID(context.Background(), "user_1", "ap_1")
	require.NoError(t, err)
	p.PromptText = "mutated"
	*p.SkipCount = 99

	again, err := s.GetActiveByID(context.Background(), "user_1", "ap_1")
	require.NoError(t, err)
	assert.Equal(t, "Prompt ap_1", again.PromptText)
	assert.Equal(t, 0, again.RejectionCount())
}

func TestStore_InsertAssignsIDAndRejectsDecade(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()

	p, err := s.InsertActive(ctx, models.NewActivePrompt("", "user_1", "text", models.TierStory, 50))
	require.NoError(t, err)
	assert.Equal(t, "ap_001", p.ID)

	_, err = s.InsertActive(ctx, models.NewActivePrompt("", "user_1", "text", models.TierDecade, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidTier)

	_, err = s.InsertActive(ctx, models.NewActivePrompt("ap_001", "user_1", "dup", models.TierStory, 50))
	assert.Error(t, err)
}

func TestStore_UserScoping(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()
	seed(t, s, "ap_1", "user_1", models.TierStory, 50)

	_, err := s.GetActiveByID(ctx, "user_2", "ap_1")
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
	_, err = s.GetActiveByText(ctx, "user_2", "Prompt ap_1")
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
	_, err = s.IncrementRejection(ctx, "user_2", "ap_1", time.Now())
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
	assert.ErrorIs(t, s.DeleteActive(ctx, "user_2", "ap_1"), domain.ErrPromptNotFound)

	locked := true
	assert.ErrorIs(t, s.UpdateActive(ctx, "user_2", "ap_1", models.PromptUpdate{IsLocked: &locked}), domain.ErrPromptNotFound)
}

func TestStore_IncrementRejectionLegacyCounter(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()

	legacy := models.NewActivePrompt("ap_legacy", "user_1", "legacy", models.TierStory, 50)
	legacy.SkipCount = nil
	legacy.ShownCount = 2
	_, err := s.InsertActive(ctx, legacy)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := s.IncrementRejection(ctx, "user_1", "ap_legacy", at)
	require.NoError(t, err)
	assert.Nil(t, p.SkipCount)
	assert.Equal(t, 3, p.ShownCount)
	assert.Equal(t, 3, p.RejectionCount())
	require.NotNil(t, p.LastShownAt)
	assert.True(t, p.LastShownAt.Equal(at))
}

func TestStore_TransactionRollback(t *testing.T) {
	s := New(&seqIDs{})
	seed(t, s, "ap_1", "user_1", models.TierStory, 50)
	boom := errors.New("boom")

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := s.IncrementRejection(ctx, "user_1", "ap_1", time.Now()); err != nil {
			return err
		}
		if err := s.AppendHistory(ctx, &models.PromptHistoryEntry{
			PromptID: "ap_1", UserID: "user_1", Outcome: models.OutcomeSkipped,
		}); err != nil {
			return err
		}
		if err := s.DeleteActive(ctx, "user_1", "ap_1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetActiveByID(context.Background(), "user_1", "ap_1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.RejectionCount())

	history, err := s.ListHistory(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_TransactionPanicRestores(t *testing.T) {
	s := New(&seqIDs{})
	seed(t, s, "ap_1", "user_1", models.TierStory, 50)

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		_ = s.DeleteActive(ctx, "user_1", "ap_1")
		panic("boom")
	})
	require.Error(t, err)

	_, err = s.GetActiveByID(context.Background(), "user_1", "ap_1")
	assert.NoError(t, err)
}

func TestStore_AppendHistoryOnce(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()
	entry := &models.PromptHistoryEntry{PromptID: "ap_1", UserID: "user_1", Outcome: models.OutcomeAnswered}

	require.NoError(t, s.AppendHistory(ctx, entry))
	assert.ErrorIs(t, s.AppendHistory(ctx, entry), domain.ErrAlreadyArchived)
	assert.ErrorIs(t, s.AppendHistory(ctx, &models.PromptHistoryEntry{PromptID: "ap_2", Outcome: "lost"}), domain.ErrInvalidOutcome)

	history, err := s.ListHistory(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].ID)
}

func TestStore_ListExpiredActive(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-2 * time.Hour, -time.Hour, 0, time.Hour} {
		p := models.NewActivePrompt(fmt.Sprintf("ap_%d", i), "user_1", "text", models.TierStory, 50)
		at := now.Add(offset)
		p.ExpiresAt = &at
		_, err := s.InsertActive(ctx, p)
		require.NoError(t, err)
	}
	seed(t, s, "ap_forever", "user_1", models.TierStory, 50)

	expired, err := s.ListExpiredActive(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 3)
	assert.Equal(t, "ap_0", expired[0].ID)
	assert.Equal(t, "ap_2", expired[2].ID)

	limited, err := s.ListExpiredActive(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_ConcurrentTransactionsDoNotLoseIncrements(t *testing.T) {
	s := New(&seqIDs{})
	seed(t, s, "ap_1", "user_1", models.TierStory, 50)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = s.WithTransaction(context.Background(), func(ctx context.Context) error {
				_, err := s.IncrementRejection(ctx, "user_1", "ap_1", time.Now())
				return err
			})
		}()
	}
	wg.Wait()

	p, err := s.GetActiveByID(context.Background(), "user_1", "ap_1")
	require.NoError(t, err)
	assert.Equal(t, workers, p.RejectionCount())
}

func TestStore_StoriesAndUsers(t *testing.T) {
	s := New(&seqIDs{})
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.AddStory(&models.Story{ID: "st_old", UserID: "user_1", CreatedAt: base})
	s.AddStory(&models.Story{ID: "st_new", UserID: "user_1", CreatedAt: base.Add(time.Hour), Entities: []string{"Lake Tahoe"}})

	stories, err := s.ListStories(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "st_new", stories[0].ID)

	stories[0].Entities[0] = "mutated"
	again, _ := s.ListStories(ctx, "user_1")
	assert.Equal(t, "Lake Tahoe", again[0].Entities[0])

	_, err = s.GetUser(ctx, "user_1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	year := 1950
	s.PutUser(&models.UserProfile{ID: "user_1", BirthYear: &year})
	u, err := s.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1950, *u.BirthYear)
}
