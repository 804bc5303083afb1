package notes

import (
	"strings"
	"unicode/utf8"

	"smartnotes/internal/ai"
	"smartnotes/internal/shared"
)

const (
	DefaultTitle    = "제목 없음"
	MaxTitleRunes   = 200
	MaxContentRunes = 50000
	MaxSummaryRunes = 1000
	MaxManualTags   = 10

	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	errTitleTooLong   = shared.Invalid("제목은 200자 이내로 입력해주세요")
	errContentTooLong = shared.Invalid("내용은 50,000자 이내로 입력해주세요")
	errSummaryEmpty   = shared.Invalid("요약 내용을 입력해주세요")
	errSummaryTooLong = shared.Invalid("요약은 1000자 이내로 입력해주세요")
	errTooManyTags    = shared.Invalid("태그는 최대 10개까지 입력할 수 있습니다")
	errNoValidTags    = shared.Invalid("유효한 태그를 입력해주세요")
	errNoContent      = shared.Invalid("AI 처리를 위한 노트 내용이 없습니다")
	errNoteNotFound   = shared.Problemf(shared.KindNotFound, "노트를 찾을 수 없거나 권한이 없습니다")
)

// NormalizeTitle trims title and substitutes DefaultTitle for a blank one.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return "", errTitleTooLong
	}
	return title, nil
}

// ValidateContent checks the content length.
func ValidateContent(content string) error {
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return errContentTooLong
	}
	return nil
}

// ValidateSummary trims a hand-written summary and checks its length.
func ValidateSummary(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errSummaryEmpty
	}
	if utf8.RuneCountInString(s) > MaxSummaryRunes {
		return "", errSummaryTooLong
	}
	return s, nil
}

// ValidateTags normalizes hand-written tags the same way AI tags are
// normalized and requires 1..MaxManualTags of them.
func ValidateTags(tags []string) ([]string, error) {
	if len(tags) > MaxManualTags {
		return nil, errTooManyTags
	}
	out := ai.NormalizeTags(tags)
	if len(out) == 0 {
		return nil, errNoValidTags
	}
	return out, nil
}

// NormalizeListQuery applies pagination defaults and bounds.
func NormalizeListQuery(q ListQuery) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	q.Sort = ParseSort(string(q.Sort))
	q.Search = strings.TrimSpace(q.Search)
	return q
}
