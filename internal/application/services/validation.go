package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/longregen/memoir/internal/domain"
)

// DefaultMaxWords is the longest prompt, in whitespace-separated words, that may be shown
const DefaultMaxWords = 30

// PromptValidator enforces prompt content-quality rules. It is safe for concurrent use.
type PromptValidator struct {
	maxWords  int
	forbidden map[string]struct{}
}

// NewPromptValidator builds a validator. A non-positive maxWords falls back to DefaultMaxWords.
func NewPromptValidator(maxWords int, forbiddenWords []string) *PromptValidator {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	forbidden := make(map[string]struct{}, len(forbiddenWords))
	for _, w := range forbiddenWords {
		if w = normalizeWord(w); w != "" {
			forbidden[w] = struct{}{}
		}
	}
	return &PromptValidator{maxWords: maxWords, forbidden: forbidden}
}

func (v *PromptValidator) IsValid(text string) bool {
	return v.Validate(text) == nil
}

// Validate returns nil or an ErrInvalidPrompt domain error whose Code names the
// broken rule: "empty", "max_words" or "generic_noun"
func (v *PromptValidator) Validate(text string) error {
	words := strings.Fields(text)
	if len(words) == 0 {
		return domain.NewDomainErrorWithCode(domain.ErrInvalidPrompt, "prompt text is empty", "empty")
	}
	if len(words) > v.maxWords {
		return domain.NewDomainErrorWithCode(domain.ErrInvalidPrompt,
			fmt.Sprintf("prompt has %d words, limit is %d", len(words), v.maxWords), "max_words")
	}
	for _, w := range words {
		if v.isForbidden(w) {
			return domain.NewDomainErrorWithCode(domain.ErrInvalidPrompt,
				fmt.Sprintf("prompt uses generic noun %q", w), "generic_noun")
		}
	}
	return nil
}

// isForbidden reports whether any hyphen-separated part of a token is a generic
// noun, with possessive and plural "s" suffixes stripped. "girl's", "boy-scout"
// and "girls" all match "girl" or "boy".
func (v *PromptValidator) isForbidden(token string) bool {
	for _, part := range strings.FieldsFunc(token, isWordSeparator) {
		w := normalizeWord(part)
		if w == "" {
			continue
		}
		if _, bad := v.forbidden[w]; bad {
			return true
		}
		if stem, ok := strings.CutSuffix(w, "s"); ok && stem != "" {
			if _, bad := v.forbidden[stem]; bad {
				return true
			}
		}
	}
	return false
}

func isWordSeparator(r rune) bool {
	return r == '-' || r == '\u2010' || r == '\u2011' || r == '\u2013' || r == '/'
}

// normalizeWord lowercases w, trims surrounding punctuation and drops a
// possessive suffix, so "House?", "(house" and "house's" match "house"
func normalizeWord(w string) string {
	w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	for _, suffix := range []string{"'s", "\u2019s", "'", "\u2019"} {
		if trimmed, ok := strings.CutSuffix(w, suffix); ok {
			return trimmed
		}
	}
	return w
}
