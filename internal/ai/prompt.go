// Package ai generates note summaries and tags through a text-completion
// provider, with every call driven by the retry executor.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"smartnotes/internal/ai/aierr"
)

// Completer is the provider boundary: one prompt in, one completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Describer is implemented by completers that can name their provider and model.
type Describer interface {
	Provider() string
	Model() string
}

const (
	// DefaultModel is stored with summaries when the provider does not say otherwise.
	DefaultModel = "gemini-2.0-flash-001"
	// MaxPromptTokens is the estimated token budget of a single prompt.
	MaxPromptTokens = 8000
	// MaxTags is the number of tags kept from a completion.
	MaxTags = 6
)

// ErrEmptyCompletion is returned when the provider answers with no text.
var ErrEmptyCompletion = errors.New("ai api returned an empty completion")

// SummaryPrompt wraps note content in the summary instruction.
func SummaryPrompt(content string) string {
	return "다음 텍스트를 3-6개의 불릿 포인트로 요약해주세요. 핵심 내용만 간결하게 정리해주세요:\n\n" + content + "\n\n요약:"
}

// TagPrompt wraps note content in the tag instruction.
func TagPrompt(content string) string {
	return "다음 텍스트의 주요 주제와 키워드를 바탕으로 최대 6개의 관련 태그를 생성해주세요. 각 태그는 2-3단어로 구성하고 쉼표로 구분해주세요:\n\n" + content + "\n\n태그:"
}

// EstimateTokens approximates the token count as characters / 4.
func EstimateTokens(prompt string) int {
	return utf8.RuneCountInString(prompt) / 4
}

// CheckTokenBudget rejects prompts estimated above MaxPromptTokens.
func CheckTokenBudget(prompt string) error {
	if n := EstimateTokens(prompt); n > MaxPromptTokens {
		return fmt.Errorf("%w: estimated %d of %d", aierr.ErrTokenLimit, n, MaxPromptTokens)
	}
	return nil
}

// ParseTags splits a comma separated completion into at most limit tags.
// A limit <= 0 keeps every tag.
func ParseTags(raw string, limit int) []string {
	tags := NormalizeTags(strings.Split(raw, ","))
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// NormalizeTags trims and lowercases tags, dropping empty entries and
// duplicates while keeping first-seen order.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
