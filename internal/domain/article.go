package domain

import "time"

// Entry is a canonical feed item produced by the feed normalizer.
// Title and Link are always present; entries missing either are dropped
// during normalization. PublishedAt stays zero when no date field parses.
type Entry struct {
	ID          string
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time
	RawDates    map[string]string
}

// Key identifies the entry for dedup purposes: feed-provided id when
// available, otherwise the link.
func (e Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Link
}

// HasDate reports whether any recognized date field parsed.
func (e Entry) HasDate() bool {
	return !e.PublishedAt.IsZero()
}

// Fingerprint is the composite key an entry's evaluation is cached under.
// Articles with identical title, summary and link intentionally share one
// evaluation subject.
func (e Entry) Fingerprint() string {
	return e.Title + ":" + e.Summary + ":" + e.Link
}

// Evaluation is the fixed-shape record parsed from a provider response.
type Evaluation struct {
	Summary   string `json:"summary"`
	Rating    string `json:"rating"`
	Rationale string `json:"rationale"`
}

// Empty reports whether no field of the response was populated, which the
// pipeline surfaces as a data-quality warning.
func (ev Evaluation) Empty() bool {
	return ev.Summary == "" && ev.Rating == "" && ev.Rationale == ""
}

// ArticleResult is one evaluated article appended to the run's result list
// and handed to the report builder.
type ArticleResult struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	Rating      string    `json:"rating"`
	Rationale   string    `json:"rationale"`
	PublishedAt time.Time `json:"date"`
	FromCache   bool      `json:"-"`
}
