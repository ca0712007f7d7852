package translate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"channel_fetcher/internal/domain"
)

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name string
		text string
		src  string
		dst  string
		age  time.Duration
		want domain.Priority
	}{
		{"empty text", "   ", "ru", "en", time.Hour, domain.PrioritySkip},
		{"same language", "hello there", "en", "en", time.Hour, domain.PrioritySkip},
		{"same language case-insensitive", "hello there", "EN", "en", time.Hour, domain.PrioritySkip},
		{"short stopword", "ok", "ru", "en", time.Hour, domain.PrioritySkip},
		{"url only", "https://example.com/path https://example.org", "ru", "en", time.Hour, domain.PrioritySkip},
		{"mentions and tags only", "@alice #news", "ru", "en", time.Hour, domain.PrioritySkip},
		{"digits only", "1 234,56 %", "ru", "en", time.Hour, domain.PrioritySkip},
		{"punctuation only", "!!! ... ???", "ru", "en", time.Hour, domain.PrioritySkip},
		{"fresh item", "свежие новости дня", "ru", "en", time.Hour, domain.PriorityHigh},
		{"just under a day", "свежие новости дня", "ru", "en", 24*time.Hour - time.Second, domain.PriorityHigh},
		{"three days old", "новости недели", "ru", "en", 72 * time.Hour, domain.PriorityNormal},
		{"exactly a week", "новости недели", "ru", "en", 7 * 24 * time.Hour, domain.PriorityNormal},
		{"a month old", "архивная запись", "ru", "en", 30 * 24 * time.Hour, domain.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPriority(tt.text, tt.src, tt.dst, tt.age)
			assert.Equal(t, tt.want, got)

			// Pure function: a repeat call must agree.
			assert.Equal(t, got, ClassifyPriority(tt.text, tt.src, tt.dst, tt.age))
		})
	}
}

func TestDetectLang(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"привет мир", "ru"},
		{"hello world", "en"},
		{"你好世界", "zh"},
		{"مرحبا", "ar"},
		{"こんにちは", "ja"},
		{"안녕하세요", "ko"},
		{"שלום", "he"},
		{"_нет_", "ru"}, // ASCII symbols between Z and a are not Latin letters
		{"[2026]", "auto"},
		{"12345 !!!", "auto"},
		{"", "auto"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLang(tt.text), "text %q", tt.text)
	}
}

func TestSameFamily(t *testing.T) {
	assert.True(t, sameFamily("ru", "uk"))
	assert.True(t, sameFamily("es", "PT"))
	assert.False(t, sameFamily("ru", "en"))
	assert.False(t, sameFamily("en", "en")) // unknown family
}
