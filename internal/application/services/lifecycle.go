package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

const DefaultRetirementThreshold = 3

type LifecycleConfig struct {
	// RetirementThreshold is the rejection count at which a skipped prompt is archived
	RetirementThreshold int
}

// LifecycleManager applies skip, answer and expiry transitions. Every archive
// writes history and deletes the active row in one transaction.
type LifecycleManager struct {
	repo     ports.PromptRepository
	txMgr    ports.TransactionManager
	selector ports.PromptSelector
	idGen    ports.IDGenerator
	clock    ports.Clock
	cfg      LifecycleConfig
	log      *logger.Logger
}

var _ ports.PromptLifecycle = (*LifecycleManager)(nil)

func NewLifecycleManager(
	repo ports.PromptRepository,
	txMgr ports.TransactionManager,
	selector ports.PromptSelector,
	idGen ports.IDGenerator,
	clock ports.Clock,
	cfg LifecycleConfig,
	log *logger.Logger,
) *LifecycleManager {
	if cfg.RetirementThreshold <= 0 {
		cfg.RetirementThreshold = DefaultRetirementThreshold
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LifecycleManager{
		repo:     repo,
		txMgr:    txMgr,
		selector: selector,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		log:      log,
	}
}

func (m *LifecycleManager) Skip(ctx context.Context, userID string, ref models.PromptRef) (*ports.SkipResult, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.skip")
	defer span.End()

	if ref.IsZero() {
		return nil, domain.NewDomainError(domain.ErrPromptRefRequired, "skip")
	}

	result := &ports.SkipResult{}
	err := m.txMgr.WithTransaction(ctx, func(ctx context.Context) error {
		target, err := m.resolve(ctx, userID, ref)
		if err != nil {
			return err
		}

		now := m.clock.Now()
		updated, err := m.repo.IncrementRejection(ctx, userID, target.ID, now)
		if err != nil {
			return fmt.Errorf("increment rejection: %w", err)
		}
		result.Prompt = updated

		if updated.RejectionCount() < m.cfg.RetirementThreshold {
			return nil
		}
		entry, err := m.archive(ctx, updated, models.OutcomeSkipped, now)
		if err != nil {
			return err
		}
		result.Retired = true
		result.History = entry
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.PromptSkips.Inc()
	span.SetAttributes(
		attribute.Int("prompt.rejections", result.Prompt.RejectionCount()),
		attribute.Bool("prompt.retired", result.Retired),
	)
	if result.Retired {
		metrics.PromptRetirements.WithLabelValues(string(models.OutcomeSkipped)).Inc()
		m.log.Info("prompt retired", "user_id", userID, "prompt_id", result.Prompt.ID,
			"skip_count", result.History.SkipCount)
	}

	next, err := m.selector.GetNext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("select next prompt: %w", err)
	}
	result.NextPrompt = next
	return result, nil
}

// Answer archives the prompt a user has just answered and selects the next one
func (m *LifecycleManager) Answer(ctx context.Context, userID string, ref models.PromptRef) (*ports.AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.answer")
	defer span.End()

	if ref.IsZero() {
		return nil, domain.NewDomainError(domain.ErrPromptRefRequired, "answer")
	}

	result := &ports.AnswerResult{}
	err := m.txMgr.WithTransaction(ctx, func(ctx context.Context) error {
		target, err := m.resolve(ctx, userID, ref)
		if err != nil {
			return err
		}
		entry, err := m.archive(ctx, target, models.OutcomeAnswered, m.clock.Now())
		if err != nil {
			return err
		}
		result.History = entry
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.PromptRetirements.WithLabelValues(string(models.OutcomeAnswered)).Inc()

	next, err := m.selector.GetNext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("select next prompt: %w", err)
	}
	result.NextPrompt = next
	return result, nil
}

// ExpireStale archives up to limit prompts whose expiry is at or before now.
// Each prompt is archived in its own transaction; prompts that disappear
// concurrently are skipped. It returns how many were archived.
func (m *LifecycleManager) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.expire_stale")
	defer span.End()

	expired, err := m.repo.ListExpiredActive(ctx, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("list expired prompts: %w", err)
	}

	archived := 0
	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			return archived, err
		}

		err := m.txMgr.WithTransaction(ctx, func(ctx context.Context) error {
			current, err := m.repo.GetActiveByID(ctx, p.UserID, p.ID)
			if err != nil {
				return err
			}
			if !current.IsExpired(now) {
				return errNotExpired
			}
			_, err = m.archive(ctx, current, models.OutcomeExpired, now)
			return err
		})
		switch {
		case err == nil:
			archived++
			metrics.PromptRetirements.WithLabelValues(string(models.OutcomeExpired)).Inc()
		case errors.Is(err, domain.ErrPromptNotFound), errors.Is(err, domain.ErrAlreadyArchived), errors.Is(err, errNotExpired):
			m.log.Debug("expiry skipped prompt", "user_id", p.UserID, "prompt_id", p.ID, "reason", err.Error())
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return archived, fmt.Errorf("expire prompt %s: %w", p.ID, err)
		}
	}

	span.SetAttributes(attribute.Int("prompts.expired", archived))
	if archived > 0 {
		m.log.Info("expired stale prompts", "count", archived)
	}
	return archived, nil
}

var errNotExpired = errors.New("prompt expiry moved")

// resolve finds the target by ID when given, otherwise by exact text
func (m *LifecycleManager) resolve(ctx context.Context, userID string, ref models.PromptRef) (*models.ActivePrompt, error) {
	if ref.PromptID != "" {
		return m.repo.GetActiveByID(ctx, userID, ref.PromptID)
	}
	return m.repo.GetActiveByText(ctx, userID, ref.PromptText)
}

// archive writes the history entry and removes the active row. Callers hold a transaction.
func (m *LifecycleManager) archive(ctx context.Context, p *models.ActivePrompt, outcome models.PromptOutcome, at time.Time) (*models.PromptHistoryEntry, error) {
	entry := models.NewHistoryEntry(m.idGen.GenerateHistoryID(), p, outcome, at)
	if err := m.repo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	if err := m.repo.DeleteActive(ctx, p.UserID, p.ID); err != nil {
		return nil, fmt.Errorf("delete active prompt: %w", err)
	}
	return entry, nil
}
