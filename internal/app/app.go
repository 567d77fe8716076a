package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"signalscanner/internal/cache"
	"signalscanner/internal/config"
	"signalscanner/internal/domain"
	"signalscanner/internal/infrastructure/feed"
	"signalscanner/internal/infrastructure/llm"
	"signalscanner/internal/infrastructure/report"
	"signalscanner/internal/infrastructure/storage"
	"signalscanner/internal/infrastructure/web"
	"signalscanner/internal/logging"
	"signalscanner/internal/ports"
	"signalscanner/internal/usecase"
)

// switchableEvaluator lets the HTTP settings endpoint swap the provider
// without rebuilding the pipeline.
type switchableEvaluator struct {
	mu    sync.RWMutex
	inner ports.Evaluator
}

func (s *switchableEvaluator) Evaluate(ctx context.Context, title, summary, link string) (string, error) {
	s.mu.RLock()
	inner := s.inner
	s.mu.RUnlock()
	return inner.Evaluate(ctx, title, summary, link)
}

func (s *switchableEvaluator) Backend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Backend()
}

func (s *switchableEvaluator) swap(next ports.Evaluator) {
	s.mu.Lock()
	s.inner = next
	s.mu.Unlock()
}

// Application wires configuration to adapters, the scan pipeline, and the
// optional HTTP front-end.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	settings  *web.SettingsStore
	manager   *feed.Manager
	evaluator *switchableEvaluator
	history   *storage.SQLiteRepository
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	fetcher := feed.NewFetcher(nil, baseLogger.With("component", "fetcher"), cfg.Scan.MaxEntriesPerFeed)

	manager, err := feed.NewManager(cfg.Paths.FeedsFile, cfg.Paths.CustomFeeds, fetcher, baseLogger.With("component", "feeds"))
	if err != nil {
		return nil, fmt.Errorf("load feed lists: %w", err)
	}

	settings := web.NewSettingsStore(cfg.Paths.SettingsFile, cfg)

	evaluator := &switchableEvaluator{}
	provider, err := llm.New(settings.EvaluatorConfig(cfg.Evaluator.APIKey), nil)
	if err != nil {
		return nil, err
	}
	evaluator.swap(provider)

	var enricher usecase.Enricher
	if cfg.Scan.EnrichEmptySummaries {
		enricher = feed.NewEnricher(baseLogger.With("component", "enricher"))
	}

	history, err := storage.Open(ctx, cfg.Paths.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open scan history: %w", err)
	}

	prompt := settings.Get().Prompt
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Feeds:         manager,
		Source:        fetcher,
		Evaluator:     evaluator,
		EntryCache:    cache.NewEntryCache(cfg.Paths.EntryCache, baseLogger.With("component", "entry_cache")),
		ResponseCache: cache.NewResponseCache(cfg.Paths.ResponseCache, prompt, baseLogger.With("component", "response_cache")),
		Report:        report.NewBuilder(cfg.Paths.ReportsDir, 0),
		History:       history,
		Enricher:      enricher,
		Logger:        baseLogger.With("component", "pipeline"),
		LockPath:      cfg.LockFile(),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		settings:  settings,
		manager:   manager,
		evaluator: evaluator,
		history:   history,
	}, nil
}

// RunScan performs one scan using the active settings.
func (a *Application) RunScan(ctx context.Context) (domain.ScanSummary, error) {
	return a.pipeline.RunScan(ctx, a.settings.Get().LookbackDays)
}

// Serve runs the HTTP front-end until ctx is canceled.
func (a *Application) Serve(ctx context.Context) error {
	server := web.NewServer(a.pipeline, a.manager, a.settings, a.history, a.cfg.Paths.ReportsDir, a.applySettings, a.logger.With("component", "web"))

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

// applySettings rebuilds the provider after a settings change. The stored
// prompt only affects future cache construction; the response cache detects
// the change on next startup and discards stale evaluations.
func (a *Application) applySettings(next web.Settings) error {
	provider, err := llm.New(a.settings.EvaluatorConfig(a.cfg.Evaluator.APIKey), nil)
	if err != nil {
		return err
	}
	a.evaluator.swap(provider)
	a.logger.Info("evaluator reconfigured", "backend", next.Backend, "model", next.Model)
	return nil
}
