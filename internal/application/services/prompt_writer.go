package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

// TemplateWriter phrases prompts from fixed templates. Output depends only on the anchor.
type TemplateWriter struct{}

var _ ports.PromptWriter = TemplateWriter{}

func (TemplateWriter) Write(_ context.Context, _ *models.Story, anchor ports.PromptAnchor) (string, error) {
	entity := strings.TrimSpace(anchor.Entity)
	emotion := strings.ToLower(strings.TrimSpace(anchor.Emotion))

	switch {
	case entity != "" && anchor.Year != nil:
		return fmt.Sprintf("What do you remember most about %s back in %d?", entity, *anchor.Year), nil
	case entity != "":
		return fmt.Sprintf("What is a moment with %s you still think about?", entity), nil
	case emotion != "" && anchor.Year != nil:
		return fmt.Sprintf("When in %d did you last feel real %s, and why?", *anchor.Year, emotion), nil
	case emotion != "":
		return fmt.Sprintf("Tell me about a time you felt %s. What happened?", emotion), nil
	}
	return "", domain.NewDomainError(domain.ErrGenerationFailed, "anchor has neither entity nor emotion")
}

// FallbackWriter tries primary and, on error or empty output, the fallback writer
type FallbackWriter struct {
	name     string
	primary  ports.PromptWriter
	fallback ports.PromptWriter
	log      *logger.Logger
}

var _ ports.PromptWriter = (*FallbackWriter)(nil)

func NewFallbackWriter(name string, primary, fallback ports.PromptWriter, log *logger.Logger) *FallbackWriter {
	if log == nil {
		log = logger.NewNop()
	}
	return &FallbackWriter{name: name, primary: primary, fallback: fallback, log: log}
}

func (w *FallbackWriter) Write(ctx context.Context, story *models.Story, anchor ports.PromptAnchor) (string, error) {
	text, err := w.primary.Write(ctx, story, anchor)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	metrics.WriterFailures.WithLabelValues(w.name).Inc()
	w.log.Warn("prompt writer failed, using fallback", "writer", w.name, "error", err)
	return w.fallback.Write(ctx, story, anchor)
}
