package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"signalscanner/internal/domain"
	"signalscanner/internal/evaluation"
	"signalscanner/internal/ports"
)

// Enricher optionally backfills entry summaries before evaluation.
type Enricher interface {
	Enrich(entries []domain.Entry)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Feeds         ports.FeedLister
	Source        ports.EntrySource
	Evaluator     ports.Evaluator
	EntryCache    ports.EntryCache
	ResponseCache ports.EvaluationCache
	Report        ports.ReportBuilder
	History       ports.ScanHistory
	Enricher      Enricher
	Logger        *slog.Logger
	LockPath      string
}

// Pipeline drives one scan: feeds are fetched sequentially, entries filtered
// against the lookback window and the entry cache, cache misses evaluated by
// the provider, and results accumulated into the report. One bad feed or
// entry never aborts the run; both caches are persisted on every exit path.
type Pipeline struct {
	feeds         ports.FeedLister
	source        ports.EntrySource
	evaluator     ports.Evaluator
	entryCache    ports.EntryCache
	responseCache ports.EvaluationCache
	report        ports.ReportBuilder
	history       ports.ScanHistory
	enricher      Enricher
	logger        *slog.Logger
	lockPath      string
	now           func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		feeds:         deps.Feeds,
		source:        deps.Source,
		evaluator:     deps.Evaluator,
		entryCache:    deps.EntryCache,
		responseCache: deps.ResponseCache,
		report:        deps.Report,
		history:       deps.History,
		enricher:      deps.Enricher,
		logger:        deps.Logger,
		lockPath:      deps.LockPath,
		now:           time.Now,
	}
}

// RunScan executes one full pipeline run over the enabled feeds.
func (p *Pipeline) RunScan(ctx context.Context, lookbackDays int) (summary domain.ScanSummary, err error) {
	if lookbackDays < 1 || lookbackDays > 30 {
		return summary, fmt.Errorf("lookback days %d outside [1,30]: %w", lookbackDays, domain.ErrRunFatal)
	}

	if p.lockPath != "" {
		lock := flock.New(p.lockPath)
		held, lockErr := lock.TryLock()
		if lockErr != nil {
			return summary, fmt.Errorf("acquire run lock: %v: %w", lockErr, domain.ErrRunFatal)
		}
		if !held {
			return summary, fmt.Errorf("another scan is already running: %w", domain.ErrRunFatal)
		}
		defer func() {
			if unlockErr := lock.Unlock(); unlockErr != nil {
				p.warn("release run lock", "error", unlockErr)
			}
		}()
	}

	startedAt := p.now()
	cutoff := startedAt.AddDate(0, 0, -lookbackDays)

	// Partial progress is never lost: both stores flush on every exit path,
	// including error returns.
	defer func() {
		if saveErr := p.saveCaches(); saveErr != nil {
			if err == nil {
				err = fmt.Errorf("persist caches: %v: %w", saveErr, domain.ErrRunFatal)
			} else {
				p.warn("persist caches after failed run", "error", saveErr)
			}
		}
	}()

	urls, err := p.feeds.GetEnabledFeeds(ctx)
	if err != nil {
		return summary, fmt.Errorf("list feeds: %v: %w", err, domain.ErrRunFatal)
	}

	p.report.AddHeader(lookbackDays)
	p.info("scan started", "lookback_days", lookbackDays, "feeds", len(urls), "cutoff", cutoff)

	for _, url := range urls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}

		entries, fetchErr := p.source.Fetch(ctx, url)
		if fetchErr != nil {
			summary.FeedsFailed++
			p.warn("feed skipped", "url", url, "error", fetchErr)
			continue
		}
		summary.FeedsScanned++

		if p.enricher != nil {
			p.enricher.Enrich(entries)
		}

		for _, entry := range entries {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			p.processEntry(ctx, entry, cutoff, &summary)
		}
	}

	reportPath, err := p.report.Generate()
	if err != nil {
		return summary, fmt.Errorf("generate report: %w", err)
	}
	summary.ReportPath = reportPath

	if p.history != nil {
		record := domain.ScanRecord{
			StartedAt:    startedAt,
			FinishedAt:   p.now(),
			LookbackDays: lookbackDays,
			FeedsScanned: summary.FeedsScanned,
			FeedsFailed:  summary.FeedsFailed,
			ReportPath:   reportPath,
			Results:      summary.Results,
		}
		if histErr := p.history.SaveScan(ctx, record); histErr != nil {
			p.warn("record scan history", "error", histErr)
		}
	}

	p.info("scan finished",
		"results", len(summary.Results),
		"feeds_scanned", summary.FeedsScanned,
		"feeds_failed", summary.FeedsFailed,
		"entries_skipped", summary.EntriesSkipped,
		"entries_failed", summary.EntriesFailed,
		"cache_hits", summary.CacheHits,
		"report", reportPath)

	return summary, nil
}

func (p *Pipeline) processEntry(ctx context.Context, entry domain.Entry, cutoff time.Time, summary *domain.ScanSummary) {
	included, reason := Include(entry, cutoff, p.entryCache)
	if !included {
		summary.EntriesSkipped++
		if reason == ExcludeNoDate {
			// Data-quality condition, not an error.
			p.warn("entry has no parseable date", "title", entry.Title, "link", entry.Link)
		} else {
			p.debug("entry excluded", "title", entry.Title, "reason", reason)
		}
		return
	}

	key := entry.Fingerprint()
	if cached, ok := p.responseCache.Get(key); ok {
		summary.CacheHits++
		p.debug("evaluation served from cache", "title", entry.Title)
		p.record(entry, cached, true, summary)
		return
	}

	raw, evalErr := p.evaluator.Evaluate(ctx, entry.Title, entry.Summary, entry.Link)
	if evalErr != nil {
		// Not cached: the entry stays eligible for retry on the next run.
		summary.EntriesFailed++
		p.warn("evaluation failed", "title", entry.Title, "backend", p.evaluator.Backend(), "error", evalErr)
		return
	}

	ev := evaluation.Parse(raw)
	if ev.Empty() {
		// Included as-is, but left uncached so a better response next run
		// can replace it.
		p.warn("provider response missing expected markers", "title", entry.Title)
	} else {
		p.responseCache.Put(key, ev)
	}

	p.record(entry, ev, false, summary)
}

func (p *Pipeline) record(entry domain.Entry, ev domain.Evaluation, fromCache bool, summary *domain.ScanSummary) {
	result := domain.ArticleResult{
		Title:       entry.Title,
		Link:        entry.Link,
		Summary:     ev.Summary,
		Rating:      ev.Rating,
		Rationale:   ev.Rationale,
		PublishedAt: entry.PublishedAt,
		FromCache:   fromCache,
	}
	p.entryCache.Mark(entry)
	summary.Results = append(summary.Results, result)
	p.report.AddArticle(result)
}

func (p *Pipeline) saveCaches() error {
	var firstErr error
	if p.entryCache != nil {
		if err := p.entryCache.Save(); err != nil {
			firstErr = err
		}
	}
	if p.responseCache != nil {
		if err := p.responseCache.Save(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
