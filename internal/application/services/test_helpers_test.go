package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/longregen/memoir/internal/adapters/memstore"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/ports"
)

// Shared test doubles

type mockIDGenerator struct {
	mu             sync.Mutex
	promptCounter  int
	historyCounter int
	requestCounter int
}

func (m *mockIDGenerator) GeneratePromptID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptCounter++
	return fmt.Sprintf("ap_test%d", m.promptCounter)
}

func (m *mockIDGenerator) GenerateHistoryID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCounter++
	return fmt.Sprintf("aph_test%d", m.historyCounter)
}

func (m *mockIDGenerator) GenerateRequestID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounter++
	return fmt.Sprintf("areq_test%d", m.requestCounter)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var errStorage = errors.New("connection reset by peer")

// faultyRepo wraps a real store and fails selected operations
type faultyRepo struct {
	ports.PromptRepository
	failListActive  bool
	failListStories bool
	failAppend      bool
	failDelete      bool
	failIncrement   bool
	failGetUser     bool
	failListExpired bool
	insertCalls     int
}

func (r *faultyRepo) ListActive(ctx context.Context, userID string) ([]*models.ActivePrompt, error) {
	if r.failListActive {
		return nil, errStorage
	}
	return r.PromptRepository.ListActive(ctx, userID)
}

func (r *faultyRepo) ListStories(ctx context.Context, userID string) ([]*models.Story, error) {
	if r.failListStories {
		return nil, errStorage
	}
	return r.PromptRepository.ListStories(ctx, userID)
}

func (r *faultyRepo) InsertActive(ctx context.Context, p *models.ActivePrompt) (*models.ActivePrompt, error) {
	r.insertCalls++
	return r.PromptRepository.InsertActive(ctx, p)
}

func (r *faultyRepo) AppendHistory(ctx context.Context, e *models.PromptHistoryEntry) error {
	if r.failAppend {
		return errStorage
	}
	return r.PromptRepository.AppendHistory(ctx, e)
}

func (r *faultyRepo) DeleteActive(ctx context.Context, userID, id string) error {
	if r.failDelete {
		return errStorage
	}
	return r.PromptRepository.DeleteActive(ctx, userID, id)
}

func (r *faultyRepo) IncrementRejection(ctx context.Context, userID, id string, at time.Time) (*models.ActivePrompt, error) {
	if r.failIncrement {
		return nil, errStorage
	}
	return r.PromptRepository.IncrementRejection(ctx, userID, id, at)
}

func (r *faultyRepo) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	if r.failGetUser {
		return nil, errStorage
	}
	return r.PromptRepository.GetUser(ctx, userID)
}

func (r *faultyRepo) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]*models.ActivePrompt, error) {
	if r.failListExpired {
		return nil, errStorage
	}
	return r.PromptRepository.ListExpiredActive(ctx, before, limit)
}

// stubWriter returns queued outputs in order, then repeats the last one
type stubWriter struct {
	outputs []string
	errs    []error
	calls   []ports.PromptAnchor
}

func (w *stubWriter) Write(_ context.Context, _ *models.Story, anchor ports.PromptAnchor) (string, error) {
	i := len(w.calls)
	w.calls = append(w.calls, anchor)
	var err error
	if i < len(w.errs) {
		err = w.errs[i]
	}
	if err != nil {
		return "", err
	}
	if len(w.outputs) == 0 {
		return "", nil
	}
	if i >= len(w.outputs) {
		i = len(w.outputs) - 1
	}
	return w.outputs[i], nil
}

var testForbiddenWords = []string{
	"girl", "boy", "man", "woman", "lady", "guy", "person", "people",
	"house", "room", "chair", "table", "thing", "place", "building", "car",
	"door", "child", "kid", "object", "item", "someone", "somebody", "something",
}

func newTestValidator() *PromptValidator {
	return NewPromptValidator(DefaultMaxWords, testForbiddenWords)
}

// testEngine wires the services over an in-memory store
type testEngine struct {
	store     *memstore.Store
	repo      *faultyRepo
	validator *PromptValidator
	generator *StoryPromptGenerator
	selector  *Selector
	lifecycle *LifecycleManager
}

func newTestEngine(writer ports.PromptWriter) *testEngine {
	ids := &mockIDGenerator{}
	store := memstore.New(ids)
	repo := &faultyRepo{PromptRepository: store}
	clock := fixedClock{now: testNow}
	validator := newTestValidator()
	if writer == nil {
		writer = TemplateWriter{}
	}
	gen := NewStoryPromptGenerator(repo, validator, writer, clock,
		GeneratorConfig{MaxAttempts: DefaultMaxGenerationAttempts, Score: DefaultGeneratedPromptScore}, nil)
	sel := NewSelector(repo, validator, gen, clock, nil)
	lc := NewLifecycleManager(repo, store, sel, ids, clock, LifecycleConfig{RetirementThreshold: 3}, nil)
	return &testEngine{store: store, repo: repo, validator: validator, generator: gen, selector: sel, lifecycle: lc}
}

func (e *testEngine) seedPrompt(id, userID, text string, tier models.Tier, score float64) *models.ActivePrompt {
	p := models.NewActivePrompt(id, userID, text, tier, score)
	p.CreatedAt = testNow.Add(-time.Hour)
	stored, err := e.store.InsertActive(context.Background(), p)
	if err != nil {
		panic(err)
	}
	return stored
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
