package feed

import (
	"log/slog"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"signalscanner/internal/domain"
)

const (
	enrichWorkers  = 3
	enrichTimeout  = 30 * time.Second
	excerptMaxRune = 600
)

// Enricher backfills empty entry summaries by extracting a readable excerpt
// from the linked page. Feeds that only ship titles would otherwise give the
// evaluator nothing to judge. Enrichment failures leave the entry untouched.
type Enricher struct {
	logger  *slog.Logger
	extract func(url string, timeout time.Duration) (readability.Article, error)
}

// NewEnricher builds an enricher with the default readability extractor.
func NewEnricher(logger *slog.Logger) *Enricher {
	return &Enricher{
		logger: logger,
		extract: func(url string, timeout time.Duration) (readability.Article, error) {
			return readability.FromURL(url, timeout)
		},
	}
}

// Enrich fills the Summary of entries that lack one, in place. Entries are
// processed by a small worker pool; each entry is owned by exactly one
// worker, so no synchronization on the slice elements is needed.
func (e *Enricher) Enrich(entries []domain.Entry) {
	var pending []*domain.Entry
	for i := range entries {
		if entries[i].Summary == "" && entries[i].Link != "" {
			pending = append(pending, &entries[i])
		}
	}
	if len(pending) == 0 {
		return
	}

	jobs := make(chan *domain.Entry)
	var wg sync.WaitGroup
	for w := 0; w < enrichWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				e.enrichOne(entry)
			}
		}()
	}
	for _, entry := range pending {
		jobs <- entry
	}
	close(jobs)
	wg.Wait()
}

func (e *Enricher) enrichOne(entry *domain.Entry) {
	article, err := e.extract(entry.Link, enrichTimeout)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("summary enrichment failed", "link", entry.Link, "error", err)
		}
		return
	}

	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = article.TextContent
	}
	if runes := []rune(excerpt); len(runes) > excerptMaxRune {
		excerpt = string(runes[:excerptMaxRune])
	}
	entry.Summary = excerpt
}
