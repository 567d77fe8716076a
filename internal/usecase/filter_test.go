package usecase

import (
	"testing"
	"time"

	"signalscanner/internal/domain"
)

type seenMap map[string]bool

func (s seenMap) Seen(key string) bool { return s[key] }

func TestIncludeCutoffBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)

	atCutoff := domain.Entry{Title: "T", Link: "L", PublishedAt: cutoff}
	if ok, reason := Include(atCutoff, cutoff, seenMap{}); !ok {
		t.Fatalf("entry dated exactly at cutoff must be included, got %s", reason)
	}

	justBefore := domain.Entry{Title: "T", Link: "L", PublishedAt: cutoff.Add(-time.Second)}
	if ok, reason := Include(justBefore, cutoff, seenMap{}); ok || reason != ExcludeBeforeCutoff {
		t.Fatalf("entry one second before cutoff must be excluded, got ok=%v reason=%s", ok, reason)
	}
}

func TestIncludeRequiresParseableDate(t *testing.T) {
	t.Parallel()

	entry := domain.Entry{Title: "T", Link: "L"}
	ok, reason := Include(entry, time.Now().AddDate(0, 0, -7), seenMap{})
	if ok || reason != ExcludeNoDate {
		t.Fatalf("dateless entry must be excluded, got ok=%v reason=%s", ok, reason)
	}
}

func TestIncludeExcludesSeenEntries(t *testing.T) {
	t.Parallel()

	cutoff := time.Now().AddDate(0, 0, -7)
	entry := domain.Entry{ID: "guid-7", Title: "T", Link: "L", PublishedAt: time.Now()}

	ok, reason := Include(entry, cutoff, seenMap{"guid-7": true})
	if ok || reason != ExcludeAlreadyProcessed {
		t.Fatalf("seen entry must be excluded, got ok=%v reason=%s", ok, reason)
	}

	if ok, _ := Include(entry, cutoff, seenMap{}); !ok {
		t.Fatalf("unseen entry must be included")
	}
}

func TestIncludeIsDeterministic(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	entry := domain.Entry{Title: "T", Link: "L", PublishedAt: cutoff.AddDate(0, 0, 2)}
	seen := seenMap{}

	first, _ := Include(entry, cutoff, seen)
	for i := 0; i < 5; i++ {
		if got, _ := Include(entry, cutoff, seen); got != first {
			t.Fatalf("Include is not deterministic")
		}
	}
}
