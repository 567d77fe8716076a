package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

// EntryCache records which feed entries were already processed. It persists
// across runs; staleness is bounded by the response cache's prompt
// invalidation, not by clearing this store.
type EntryCache struct {
	path   string
	logger *slog.Logger

	entries map[string]entryRecord
	now     func() time.Time
}

var _ ports.EntryCache = (*EntryCache)(nil)

type entryRecord struct {
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewEntryCache loads the store at path. Missing or corrupt files yield an
// empty cache; corruption is logged, not fatal.
func NewEntryCache(path string, logger *slog.Logger) *EntryCache {
	c := &EntryCache{
		path:    path,
		logger:  logger,
		entries: map[string]entryRecord{},
		now:     time.Now,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) && logger != nil {
			logger.Warn("entry cache unreadable, starting empty", "path", path, "error", err)
		}
		return c
	}

	var entries map[string]entryRecord
	if err := json.Unmarshal(raw, &entries); err != nil {
		if logger != nil {
			logger.Warn("entry cache corrupt, starting empty", "path", path, "error", err)
		}
		return c
	}
	if entries != nil {
		c.entries = entries
	}
	return c
}

// Seen reports whether the entry key was processed in this cache's lifetime.
func (c *EntryCache) Seen(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Mark records the entry as processed.
func (c *EntryCache) Mark(entry domain.Entry) {
	c.entries[entry.Key()] = entryRecord{
		Title:       entry.Title,
		Date:        entry.PublishedAt,
		ProcessedAt: c.now(),
	}
}

// Len reports the number of remembered entries.
func (c *EntryCache) Len() int {
	return len(c.entries)
}

// Save rewrites the whole file.
func (c *EntryCache) Save() error {
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("write entry cache: %w", err)
	}
	return nil
}
