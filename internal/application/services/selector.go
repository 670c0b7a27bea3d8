package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

// Selector picks the best eligible active prompt and falls back to generation
type Selector struct {
	prompts   ports.ActivePromptRepository
	validator ports.PromptValidator
	generator ports.PromptGenerator
	clock     ports.Clock
	log       *logger.Logger
}

var _ ports.PromptSelector = (*Selector)(nil)

func NewSelector(
	prompts ports.ActivePromptRepository,
	validator ports.PromptValidator,
	generator ports.PromptGenerator,
	clock ports.Clock,
	log *logger.Logger,
) *Selector {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Selector{
		prompts:   prompts,
		validator: validator,
		generator: generator,
		clock:     clock,
		log:       log,
	}
}

func (s *Selector) GetNext(ctx context.Context, userID string) (*models.ActivePrompt, error) {
	ctx, span := tracer.Start(ctx, "selector.get_next")
	defer span.End()

	active, err := s.prompts.ListActive(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list active prompts: %w", err)
	}

	if best := BestEligible(active, s.clock.Now(), s.validator); best != nil {
		s.record(span, best, "active")
		return best, nil
	}

	prompt, err := s.generator.Generate(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	source := "generated"
	if prompt.Tier == models.TierDecade {
		source = "fallback"
	}
	s.record(span, prompt, source)
	s.log.Debug("no eligible active prompt", "user_id", userID, "source", source, "candidates", len(active))
	return prompt, nil
}

func (s *Selector) record(span trace.Span, p *models.ActivePrompt, source string) {
	tier := strconv.Itoa(int(p.Tier))
	metrics.PromptSelections.WithLabelValues(tier, source).Inc()
	span.SetAttributes(
		attribute.Int("prompt.tier", int(p.Tier)),
		attribute.String("prompt.source", source),
	)
}

// BestEligible returns the eligible prompt with the highest tier, then highest
// score, then smallest ID. A NaN score ranks below every real score. It returns
// nil when nothing is eligible.
func BestEligible(prompts []*models.ActivePrompt, now time.Time, v models.TextChecker) *models.ActivePrompt {
	var best *models.ActivePrompt
	for _, p := range prompts {
		if p == nil || !p.IsEligible(now, v) {
			continue
		}
		if best == nil || ranksAbove(p, best) {
			best = p
		}
	}
	return best
}

func ranksAbove(a, b *models.ActivePrompt) bool {
	if a.Tier != b.Tier {
		return a.Tier > b.Tier
	}
	aNaN, bNaN := math.IsNaN(a.PromptScore), math.IsNaN(b.PromptScore)
	if aNaN != bNaN {
		return bNaN
	}
	if !aNaN && a.PromptScore != b.PromptScore {
		return a.PromptScore > b.PromptScore
	}
	return a.ID < b.ID
}
