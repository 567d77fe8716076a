package usecase

import (
	"time"

	"signalscanner/internal/domain"
)

// Exclusion reasons reported by Include for logging and counters.
const (
	ExcludeNone             = ""
	ExcludeNoDate           = "no_parseable_date"
	ExcludeBeforeCutoff     = "before_cutoff"
	ExcludeAlreadyProcessed = "already_processed"
)

// SeenSet answers whether an entry key was already processed.
type SeenSet interface {
	Seen(key string) bool
}

// Include decides whether an entry enters evaluation. Rules apply in order:
// the entry must carry a parseable date, the date must be at or after the
// cutoff (inclusive), and the entry key must be unknown to the seen set.
// The predicate is pure; the first failing rule names the exclusion.
func Include(entry domain.Entry, cutoff time.Time, seen SeenSet) (bool, string) {
	if !entry.HasDate() {
		return false, ExcludeNoDate
	}
	if entry.PublishedAt.Before(cutoff) {
		return false, ExcludeBeforeCutoff
	}
	if seen != nil && seen.Seen(entry.Key()) {
		return false, ExcludeAlreadyProcessed
	}
	return true, ExcludeNone
}
