package feed

import (
	"errors"
	"testing"
	"time"

	readability "github.com/go-shiori/go-readability"

	"signalscanner/internal/domain"
)

func TestNewEnricherHasDefaultExtractor(t *testing.T) {
	t.Parallel()

	e := NewEnricher(nil)
	if e.extract == nil {
		t.Fatalf("default extractor must be wired")
	}
}

func TestEnrichFillsOnlyEmptySummaries(t *testing.T) {
	t.Parallel()

	e := NewEnricher(nil)
	e.extract = func(url string, timeout time.Duration) (readability.Article, error) {
		return readability.Article{Excerpt: "extracted excerpt"}, nil
	}

	entries := []domain.Entry{
		{Title: "Has summary", Link: "https://example.com/a", Summary: "keep me"},
		{Title: "Empty", Link: "https://example.com/b"},
	}
	e.Enrich(entries)

	if entries[0].Summary != "keep me" {
		t.Fatalf("existing summary was overwritten: %q", entries[0].Summary)
	}
	if entries[1].Summary != "extracted excerpt" {
		t.Fatalf("empty summary was not enriched: %q", entries[1].Summary)
	}
}

func TestEnrichExtractionFailureLeavesEntryUntouched(t *testing.T) {
	t.Parallel()

	e := NewEnricher(nil)
	e.extract = func(url string, timeout time.Duration) (readability.Article, error) {
		return readability.Article{}, errors.New("boom")
	}

	entries := []domain.Entry{{Title: "Empty", Link: "https://example.com/b"}}
	e.Enrich(entries)

	if entries[0].Summary != "" {
		t.Fatalf("summary should remain empty on failure, got %q", entries[0].Summary)
	}
}

func TestEnrichTruncatesLongExcerpts(t *testing.T) {
	t.Parallel()

	long := make([]rune, excerptMaxRune+50)
	for i := range long {
		long[i] = 'x'
	}

	e := NewEnricher(nil)
	e.extract = func(url string, timeout time.Duration) (readability.Article, error) {
		return readability.Article{TextContent: string(long)}, nil
	}

	entries := []domain.Entry{{Title: "Empty", Link: "https://example.com/b"}}
	e.Enrich(entries)

	if got := len([]rune(entries[0].Summary)); got != excerptMaxRune {
		t.Fatalf("expected excerpt truncated to %d runes, got %d", excerptMaxRune, got)
	}
}
