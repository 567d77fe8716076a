package ports

import (
	"context"

	"signalscanner/internal/domain"
)

// EntrySource normalizes one feed URL into canonical entries.
type EntrySource interface {
	Fetch(ctx context.Context, url string) ([]domain.Entry, error)
}

// Evaluator scores one article and returns the provider's raw text response.
type Evaluator interface {
	Evaluate(ctx context.Context, title, summary, link string) (string, error)
	Backend() string
}

// EntryCache remembers which entries were already processed in prior runs.
type EntryCache interface {
	Seen(key string) bool
	Mark(entry domain.Entry)
	Save() error
}

// EvaluationCache stores evaluations keyed by article fingerprint; it drops
// every stored response when the prompt template changes.
type EvaluationCache interface {
	Get(key string) (domain.Evaluation, bool)
	Put(key string, ev domain.Evaluation)
	Save() error
}

// ReportBuilder accumulates one header plus N articles and renders a file.
type ReportBuilder interface {
	AddHeader(lookbackDays int)
	AddArticle(result domain.ArticleResult)
	Generate() (string, error)
}

// FeedLister supplies the ordered feed URLs for a run.
type FeedLister interface {
	GetEnabledFeeds(ctx context.Context) ([]string, error)
}

// ScanHistory persists completed runs for audit and later inspection.
type ScanHistory interface {
	SaveScan(ctx context.Context, record domain.ScanRecord) error
	RecentScans(ctx context.Context, limit int) ([]domain.ScanRecord, error)
}
