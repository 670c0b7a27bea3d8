// Package memstore keeps prompts, history, stories and profiles in process memory.
// It backs tests and `memoir serve --store=memory`.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/ports"
)

type txMarker struct{}

// Store implements ports.PromptRepository and ports.TransactionManager.
// Transactions are serialized; a failed transaction restores the state it started from.
type Store struct {
	// txMu serializes transactions and standalone calls against each other
	txMu sync.Mutex
	mu   sync.RWMutex

	idGen    ports.IDGenerator
	prompts  map[string]*models.ActivePrompt
	history  []*models.PromptHistoryEntry
	archived map[string]struct{}
	stories  map[string][]*models.Story
	users    map[string]*models.UserProfile
}

var _ ports.PromptRepository = (*Store)(nil)
var _ ports.TransactionManager = (*Store)(nil)

func New(idGen ports.IDGenerator) *Store {
	return &Store{
		idGen:    idGen,
		prompts:  make(map[string]*models.ActivePrompt),
		archived: make(map[string]struct{}),
		stories:  make(map[string][]*models.Story),
		users:    make(map[string]*models.UserProfile),
	}
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txMarker{}).(bool)
	return ok
}

// enter serializes a standalone call with running transactions
func (s *Store) enter(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type snapshot struct {
	prompts  map[string]*models.ActivePrompt
	history  []*models.PromptHistoryEntry
	archived map[string]struct{}
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		prompts:  make(map[string]*models.ActivePrompt, len(s.prompts)),
		history:  append([]*models.PromptHistoryEntry(nil), s.history...),
		archived: make(map[string]struct{}, len(s.archived)),
	}
	for id, p := range s.prompts {
		snap.prompts[id] = p.Clone()
	}
	for id := range s.archived {
		snap.archived[id] = struct{}{}
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = snap.prompts
	s.history = snap.history
	s.archived = snap.archived
}

// WithTransaction runs fn while holding the store exclusively. Nested calls join the outer one.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			err = fmt.Errorf("panic recovered in transaction: %v", r)
		}
	}()

	if err = fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context, userID string) ([]*models.ActivePrompt, error) {
	defer s.enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ActivePrompt, 0)
	for _, p := range s.prompts {
		if p.UserID == userID {
			result = append(result, p.Clone())
		}
	}
	sortPrompts(result)
	return result, nil
}

func (s *Store) GetActiveByID(ctx context.Context, userID, id string) (*models.ActivePrompt, error) {
	defer s.enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok || p.UserID != userID {
		return nil, domain.ErrPromptNotFound
	}
	return p.Clone(), nil
}

func (s *Store) GetActiveByText(ctx context.Context, userID, text string) (*models.ActivePrompt, error) {
	defer s.enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.ActivePrompt
	for _, p := range s.prompts {
		if p.UserID == userID && p.PromptText == text {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrPromptNotFound
	}
	sortPrompts(matches)
	return matches[0].Clone(), nil
}

func (s *Store) InsertActive(ctx context.Context, prompt *models.ActivePrompt) (*models.ActivePrompt, error) {
	if !prompt.Tier.Persistable() {
		return nil, fmt.Errorf("%w: tier %d cannot be stored", domain.ErrInvalidTier, int(prompt.Tier))
	}

	defer s.enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	p := prompt.Clone()
	if p.ID == "" {
		p.ID = s.idGen.GeneratePromptID()
	}
	if _, exists := s.prompts[p.ID]; exists {
		return nil, fmt.Errorf("active prompt %s already exists", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.prompts[p.ID] = p
	return p.Clone(), nil
}

func (s *Store) UpdateActive(ctx context.Context, userID, id string, update models.PromptUpdate) error {
	defer s.enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok || p.UserID != userID {
		return domain.ErrPromptNotFound
	}
	update.Apply(p)
	return nil
}

func (s *Store) IncrementRejection(ctx context.Context, userID, id string, shownAt time.Time) (*models.ActivePrompt, error) {
	defer s.enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok || p.UserID != userID {
		return nil, domain.ErrPromptNotFound
	}
	p.IncrementRejection(shownAt)
	return p.Clone(), nil
}

func (s *Store) DeleteActive(ctx context.Context, userID, id string) error {
	defer s.enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok || p.UserID != userID {
		return domain.ErrPromptNotFound
	}
	delete(s.prompts, id)
	return nil
}

func (s *Store) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]*models.ActivePrompt, error) {
	defer s.enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ActivePrompt, 0)
	for _, p := range s.prompts {
		if p.IsExpired(before) {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExpiresAt.Equal(*result[j].ExpiresAt) {
			return result[i].ExpiresAt.Before(*result[j].ExpiresAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) AppendHistory(ctx context.Context, entry *models.PromptHistoryEntry) error {
	if !entry.Outcome.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOutcome, entry.Outcome)
	}

	defer s.enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.archived[entry.PromptID]; done {
		return domain.ErrAlreadyArchived
	}
	e := *entry
	if e.ID == "" {
		e.ID = s.idGen.GenerateHistoryID()
	}
	s.history = append(s.history, &e)
	s.archived[e.PromptID] = struct{}{}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, userID string) ([]*models.PromptHistoryEntry, error) {
	defer s.enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.PromptHistoryEntry, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UserID == userID {
			e := *s.history[i]
			result = append(result, &e)
		}
	}
	return result, nil
}

func (s *Store) ListStories(ctx context.Context, userID string) ([]*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.stories[userID]
	result := make([]*models.Story, 0, len(src))
	for _, st := range src {
		result = append(result, copyStory(st))
	}
	models.SortStoriesNewestFirst(result)
	return result, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	profile := *u
	if u.BirthYear != nil {
		y := *u.BirthYear
		profile.BirthYear = &y
	}
	return &profile, nil
}

// AddStory records a story for a user, standing in for the recording service
func (s *Store) AddStory(story *models.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	s.stories[story.UserID] = append(s.stories[story.UserID], copyStory(story))
}

// PutUser creates or replaces a user profile
func (s *Store) PutUser(user *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
}

func copyStory(st *models.Story) *models.Story {
	c := *st
	c.Emotions = append([]string(nil), st.Emotions...)
	c.Entities = append([]string(nil), st.Entities...)
	if st.StoryYear != nil {
		y := *st.StoryYear
		c.StoryYear = &y
	}
	return &c
}

// sortPrompts orders by tier desc, score desc, id asc
func sortPrompts(prompts []*models.ActivePrompt) {
	sort.Slice(prompts, func(i, j int) bool {
		a, b := prompts[i], prompts[j]
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if a.PromptScore != b.PromptScore {
			return a.PromptScore > b.PromptScore
		}
		return a.ID < b.ID
	})
}
