package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"signalscanner/internal/domain"
	"signalscanner/internal/infrastructure/feed"
	"signalscanner/internal/ports"
)

// Scanner runs one scan over the enabled feeds.
type Scanner interface {
	RunScan(ctx context.Context, lookbackDays int) (domain.ScanSummary, error)
}

// Server exposes the scanner over HTTP: triggering scans, managing feeds,
// editing runtime settings, and downloading generated reports.
type Server struct {
	scanner    Scanner
	feeds      *feed.Manager
	settings   *SettingsStore
	history    ports.ScanHistory
	reportsDir string
	onSettings func(Settings) error
	logger     *slog.Logger
}

// NewServer wires the HTTP front-end. onSettings is invoked after a
// settings update is persisted, letting the caller swap the provider; it
// may be nil.
func NewServer(scanner Scanner, feeds *feed.Manager, settings *SettingsStore, history ports.ScanHistory, reportsDir string, onSettings func(Settings) error, logger *slog.Logger) *Server {
	return &Server{
		scanner:    scanner,
		feeds:      feeds,
		settings:   settings,
		history:    history,
		reportsDir: reportsDir,
		onSettings: onSettings,
		logger:     logger,
	}
}

// Router constructs a Gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/scan", s.handleScan)
	r.GET("/settings", s.handleGetSettings)
	r.POST("/settings", s.handleUpdateSettings)
	r.GET("/feeds", s.handleListFeeds)
	r.POST("/feeds", s.handleAddFeed)
	r.POST("/feeds/test", s.handleTestFeed)
	r.DELETE("/feeds/:id", s.handleRemoveFeed)
	r.GET("/history", s.handleHistory)
	r.GET("/download/:filename", s.handleDownload)

	return r
}

type scanRequest struct {
	DaysBack int `json:"days_back"`
}

type scanResponse struct {
	Results        []domain.ArticleResult `json:"results"`
	ReportFile     string                 `json:"report_file,omitempty"`
	FeedsScanned   int                    `json:"feeds_scanned"`
	FeedsFailed    int                    `json:"feeds_failed"`
	EntriesSkipped int                    `json:"entries_skipped"`
	EntriesFailed  int                    `json:"entries_failed"`
	CacheHits      int                    `json:"cache_hits"`
	AllFeedsFailed bool                   `json:"all_feeds_failed"`
}

// handleScan runs a scan synchronously. An omitted days_back falls back to
// the active settings.
func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
	}
	if req.DaysBack == 0 {
		req.DaysBack = s.settings.Get().LookbackDays
	}
	if req.DaysBack < 1 || req.DaysBack > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days_back must be between 1 and 30"})
		return
	}

	summary, err := s.scanner.RunScan(c.Request.Context(), req.DaysBack)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRunFatal) {
			status = http.StatusConflict
		}
		s.logger.Error("scan failed", "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, scanResponse{
		Results:        summary.Results,
		ReportFile:     filepath.Base(summary.ReportPath),
		FeedsScanned:   summary.FeedsScanned,
		FeedsFailed:    summary.FeedsFailed,
		EntriesSkipped: summary.EntriesSkipped,
		EntriesFailed:  summary.EntriesFailed,
		CacheHits:      summary.CacheHits,
		AllFeedsFailed: summary.AllFeedsFailed(),
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Get())
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var next Settings
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if err := s.settings.Update(next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.onSettings != nil {
		if err := s.onSettings(next); err != nil {
			s.logger.Error("apply settings", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) handleListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": s.feeds.Feeds(c.Request.Context())})
}

type feedRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAddFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	added, err := s.feeds.Add(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (s *Server) handleTestFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if err := s.feeds.Validate(c.Request.Context(), req.URL); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRemoveFeed(c *gin.Context) {
	if err := s.feeds.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleHistory returns the most recent scans, newest first. The optional
// limit query parameter caps the count; the store applies its own default.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"scans": []domain.ScanRecord{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	scans, err := s.history.RecentScans(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("load scan history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if scans == nil {
		scans = []domain.ScanRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

// handleDownload serves a generated report. Only bare filenames inside the
// reports directory are allowed.
func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	path := filepath.Join(s.reportsDir, name)
	abs, err := filepath.Abs(path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	dir, err := filepath.Abs(s.reportsDir)
	if err != nil || !strings.HasPrefix(abs, dir+string(filepath.Separator)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	c.FileAttachment(abs, name)
}
