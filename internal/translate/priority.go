package translate

import (
	"regexp"
	"strings"
	"time"

	"channel_fetcher/internal/domain"
)

const (
	highPriorityAge   = 24 * time.Hour
	normalPriorityAge = 7 * 24 * time.Hour
)

var (
	urlOnlyRe        = regexp.MustCompile(`^(?:https?://\S+[\s]*)+$`)
	mentionTagOnlyRe = regexp.MustCompile(`^(?:[@#][\w\d_]+[\s]*)+$`)
	digitsOnlyRe     = regexp.MustCompile(`^[\d\s.,:%/+-]+$`)
	punctOnlyRe      = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
)

// shortStopwords are short interjections not worth a provider call in any
// language pair.
var shortStopwords = map[string]struct{}{
	"ok": {}, "okay": {}, "yes": {}, "no": {}, "hi": {}, "hey": {},
	"thanks": {}, "thx": {}, "lol": {}, "wow": {}, "omg": {}, "bye": {},
	"gm": {}, "gn": {}, "+1": {}, "da": {}, "net": {},
}

// ClassifyPriority decides whether and how eagerly to translate an item.
// It is a pure function of its inputs: the same text, language pair, and
// age always yield the same priority.
func ClassifyPriority(text, srcLang, dstLang string, age time.Duration) domain.Priority {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.PrioritySkip
	}
	if srcLang != "" && strings.EqualFold(srcLang, dstLang) {
		return domain.PrioritySkip
	}
	if _, ok := shortStopwords[strings.ToLower(trimmed)]; ok {
		return domain.PrioritySkip
	}
	if urlOnlyRe.MatchString(trimmed) ||
		mentionTagOnlyRe.MatchString(trimmed) ||
		digitsOnlyRe.MatchString(trimmed) ||
		punctOnlyRe.MatchString(trimmed) {
		return domain.PrioritySkip
	}

	switch {
	case age < highPriorityAge:
		return domain.PriorityHigh
	case age <= normalPriorityAge:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

// DetectLang guesses an item's language from its script. The gateway does
// not annotate messages with a language, so a script heuristic picks the
// batch grouping; providers receive "auto" when nothing matches.
func DetectLang(text string) string {
	for _, r := range text {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			return "ru"
		case r >= 0x4E00 && r <= 0x9FFF:
			return "zh"
		case r >= 0x0600 && r <= 0x06FF:
			return "ar"
		case r >= 0x3040 && r <= 0x30FF:
			return "ja"
		case r >= 0xAC00 && r <= 0xD7AF:
			return "ko"
		case r >= 0x0590 && r <= 0x05FF:
			return "he"
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			return "en"
		}
	}
	return "auto"
}

// languageFamilies groups related languages; a same-family pair above the
// quality threshold escalates to the stronger model because near-language
// pairs trip up cheaper models.
var languageFamilies = map[string]string{
	"ru": "slavic", "uk": "slavic", "be": "slavic", "bg": "slavic", "sr": "slavic",
	"es": "romance", "pt": "romance", "it": "romance", "fr": "romance", "ro": "romance",
	"da": "germanic", "no": "germanic", "sv": "germanic", "nl": "germanic", "de": "germanic",
}

func sameFamily(a, b string) bool {
	fa, oka := languageFamilies[strings.ToLower(a)]
	fb, okb := languageFamilies[strings.ToLower(b)]
	return oka && okb && fa == fb
}
