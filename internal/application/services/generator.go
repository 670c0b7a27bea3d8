package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

const (
	DefaultMaxGenerationAttempts = 5
	DefaultGeneratedPromptScore  = 50
)

type GeneratorConfig struct {
	// MaxAttempts caps how many story candidates are written and validated
	MaxAttempts int
	// Score is the prompt_score given to story-derived prompts
	Score float64
}

// StoryPromptGenerator creates a tier 1 prompt from the user's latest story, or
// synthesizes the tier 0 decade prompt when that is impossible.
type StoryPromptGenerator struct {
	repo      ports.PromptRepository
	validator ports.PromptValidator
	writer    ports.PromptWriter
	clock     ports.Clock
	cfg       GeneratorConfig
	log       *logger.Logger
}

var _ ports.PromptGenerator = (*StoryPromptGenerator)(nil)

func NewStoryPromptGenerator(
	repo ports.PromptRepository,
	validator ports.PromptValidator,
	writer ports.PromptWriter,
	clock ports.Clock,
	cfg GeneratorConfig,
	log *logger.Logger,
) *StoryPromptGenerator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxGenerationAttempts
	}
	if writer == nil {
		writer = TemplateWriter{}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &StoryPromptGenerator{
		repo:      repo,
		validator: validator,
		writer:    writer,
		clock:     clock,
		cfg:       cfg,
		log:       log,
	}
}

// Generate never fails for lack of material: it degrades to the decade prompt.
// Only storage errors are returned.
func (g *StoryPromptGenerator) Generate(ctx context.Context, userID string) (*models.ActivePrompt, error) {
	ctx, span := tracer.Start(ctx, "generator.generate")
	defer span.End()

	stories, err := g.repo.ListStories(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list stories: %w", err)
	}

	story := models.LatestStory(stories)
	if story == nil {
		metrics.GenerationFallbacks.WithLabelValues("no_stories").Inc()
		span.SetAttributes(attribute.String("generator.fallback", "no_stories"))
		return g.DecadePrompt(ctx, userID)
	}

	prompt, err := g.fromStory(ctx, userID, story)
	if err == nil {
		span.SetAttributes(attribute.Int("prompt.tier", int(prompt.Tier)))
		return prompt, nil
	}
	if !errors.Is(err, domain.ErrGenerationFailed) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.GenerationFallbacks.WithLabelValues("no_valid_candidate").Inc()
	span.SetAttributes(attribute.String("generator.fallback", "no_valid_candidate"))
	g.log.Info("story prompt generation degraded to decade prompt",
		"user_id", userID, "story_id", story.ID, "reason", err.Error())
	return g.DecadePrompt(ctx, userID)
}

func (g *StoryPromptGenerator) fromStory(ctx context.Context, userID string, story *models.Story) (*models.ActivePrompt, error) {
	seen, err := g.knownTexts(ctx, userID)
	if err != nil {
		return nil, err
	}

	anchors := storyAnchors(story)
	if len(anchors) == 0 {
		return nil, domain.NewDomainError(domain.ErrGenerationFailed, "story has no entities or emotions")
	}
	if len(anchors) > g.cfg.MaxAttempts {
		anchors = anchors[:g.cfg.MaxAttempts]
	}

	for _, anchor := range anchors {
		text, err := g.writer.Write(ctx, story, anchor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.log.Debug("prompt candidate write failed", "user_id", userID, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if err := g.validator.Validate(text); err != nil {
			g.log.Debug("prompt candidate rejected", "user_id", userID, "reason", err.Error())
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}

		prompt := models.NewActivePrompt("", userID, text, models.TierStory, g.cfg.Score)
		prompt.AnchorEntity = anchor.Entity
		prompt.AnchorYear = anchor.Year
		prompt.SourceStoryID = story.ID
		prompt.CreatedAt = g.clock.Now()

		stored, err := g.repo.InsertActive(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("insert generated prompt: %w", err)
		}
		g.log.Info("generated story prompt", "user_id", userID, "prompt_id", stored.ID, "story_id", story.ID)
		return stored, nil
	}

	return nil, domain.NewDomainError(domain.ErrGenerationFailed,
		fmt.Sprintf("no valid candidate in %d attempts", len(anchors)))
}

// knownTexts collects prompt texts the user has already been given, archived or still active
func (g *StoryPromptGenerator) knownTexts(ctx context.Context, userID string) (map[string]struct{}, error) {
	history, err := g.repo.ListHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	active, err := g.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active prompts: %w", err)
	}

	seen := make(map[string]struct{}, len(history)+len(active))
	for _, h := range history {
		seen[h.PromptText] = struct{}{}
	}
	for _, p := range active {
		seen[p.PromptText] = struct{}{}
	}
	return seen, nil
}

// storyAnchors lists entities in story order, then emotions, skipping blanks
func storyAnchors(story *models.Story) []ports.PromptAnchor {
	anchors := make([]ports.PromptAnchor, 0, len(story.Entities)+len(story.Emotions))
	for _, e := range story.Entities {
		if e = strings.TrimSpace(e); e != "" {
			anchors = append(anchors, ports.PromptAnchor{Entity: e, Year: story.StoryYear})
		}
	}
	for _, e := range story.Emotions {
		if e = strings.TrimSpace(e); e != "" {
			anchors = append(anchors, ports.PromptAnchor{Emotion: e, Year: story.StoryYear})
		}
	}
	return anchors
}

// DecadePrompt synthesizes the tier 0 prompt. It is never stored and has no ID.
func (g *StoryPromptGenerator) DecadePrompt(ctx context.Context, userID string) (*models.ActivePrompt, error) {
	var birthYear *int
	user, err := g.repo.GetUser(ctx, userID)
	switch {
	case err == nil:
		birthYear = user.BirthYear
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := g.clock.Now()
	decade := ChildhoodDecade(birthYear, now.Year())

	prompt := models.NewActivePrompt("", userID,
		fmt.Sprintf("What do you remember most from the %ds?", decade), models.TierDecade, 0)
	prompt.AnchorEntity = fmt.Sprintf("%ds", decade)
	prompt.AnchorYear = &decade
	prompt.CreatedAt = now
	return prompt, nil
}

// minBirthYear keeps the decade a four-digit year. Earlier birth years are
// treated as unknown.
const minBirthYear = 1000

// ChildhoodDecade is the decade in which someone born in birthYear turned ten,
// never later than the decade containing currentYear.
func ChildhoodDecade(birthYear *int, currentYear int) int {
	current := currentYear / 10 * 10
	if birthYear == nil || *birthYear < minBirthYear {
		return current
	}
	decade := (*birthYear + 10) / 10 * 10
	if decade > current {
		return current
	}
	return decade
}
