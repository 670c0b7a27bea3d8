package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/longregen/memoir/internal/adapters/circuitbreaker"
	"github.com/longregen/memoir/internal/domain/models"
	"github.com/longregen/memoir/internal/ports"
)

const systemPrompt = `You write one short question that invites an older adult to tell a specific memory.
Rules:
- Ask about the single anchor you are given. Use its exact name.
- At most 25 words. One sentence ending with a question mark.
- Never use vague words like "thing", "stuff", "place", "person" or "event".
- Reply with the question only. No quotes, no preamble.`

// completer is the slice of Client the writer needs
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Writer phrases prompts with a language model. Calls go through a circuit breaker
// so a failing endpoint is skipped quickly and callers fall back to templates.
type Writer struct {
	client  completer
	breaker *circuitbreaker.CircuitBreaker
}

var _ ports.PromptWriter = (*Writer)(nil)

func NewWriter(client completer, breaker *circuitbreaker.CircuitBreaker) *Writer {
	return &Writer{client: client, breaker: breaker}
}

func (w *Writer) Write(ctx context.Context, story *models.Story, anchor ports.PromptAnchor) (string, error) {
	user := buildUserMessage(story, anchor)

	var text string
	err := w.breaker.Execute(func() error {
		out, err := w.client.Complete(ctx, systemPrompt, user)
		if err != nil {
			return err
		}
		text = cleanCompletion(out)
		return nil
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func buildUserMessage(story *models.Story, anchor ports.PromptAnchor) string {
	var b strings.Builder
	switch {
	case anchor.Entity != "":
		fmt.Fprintf(&b, "Anchor: %s\n", anchor.Entity)
	case anchor.Emotion != "":
		fmt.Fprintf(&b, "Anchor feeling: %s\n", anchor.Emotion)
	}
	if anchor.Year != nil {
		fmt.Fprintf(&b, "Year: %d\n", *anchor.Year)
	}
	if story != nil && story.StoryText != "" {
		excerpt := story.StoryText
		if r := []rune(excerpt); len(r) > 600 {
			excerpt = string(r[:600])
		}
		fmt.Fprintf(&b, "Their last story:\n%s\n", excerpt)
	}
	return b.String()
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// cleanCompletion drops reasoning blocks, keeps the first non-empty line and strips wrapping quotes
func cleanCompletion(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.TrimSpace(strings.Trim(line, `"'“”`))
	}
	return ""
}
