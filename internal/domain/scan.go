package domain

import "time"

// ScanRecord captures one completed pipeline run for the history store.
type ScanRecord struct {
	ID           int64           `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	LookbackDays int             `json:"lookback_days"`
	FeedsScanned int             `json:"feeds_scanned"`
	FeedsFailed  int             `json:"feeds_failed"`
	ReportPath   string          `json:"report_path"`
	Results      []ArticleResult `json:"results"`
}

// ScanSummary is the outcome of a run handed back to the boundary layer.
// A run with zero results and zero failed feeds is a successful empty scan;
// FeedsFailed lets callers distinguish "nothing new" from "nothing reachable".
type ScanSummary struct {
	Results        []ArticleResult
	ReportPath     string
	FeedsScanned   int
	FeedsFailed    int
	EntriesSkipped int
	EntriesFailed  int
	CacheHits      int
}

// AllFeedsFailed reports whether every configured feed failed to fetch or
// parse, which callers surface with a distinct diagnostic.
func (s ScanSummary) AllFeedsFailed() bool {
	return s.FeedsScanned == 0 && s.FeedsFailed > 0
}
