package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalscanner/internal/ports"
)

// Default feeds pre-populated on first start.
var defaultFeeds = map[string]string{
	"aws":        "https://aws.amazon.com/blogs/aws/feed/",
	"azure":      "https://azure.microsoft.com/en-us/blog/feed/",
	"gcp":        "https://cloudblog.withgoogle.com/rss/",
	"cloudflare": "https://blog.cloudflare.com/rss/",
	"cisco":      "https://blogs.cisco.com/feed",
	"redhat":     "https://www.redhat.com/en/feed",
}

// Feed describes one managed feed source.
type Feed struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	AddedAt   time.Time `json:"added_at"`
	Status    string    `json:"status"`
	IsDefault bool      `json:"is_default"`
}

type feedFile struct {
	Feeds []Feed `json:"feeds"`
}

// Manager keeps the default feed list and user-added custom feeds in two
// JSON files, validates feeds by actually fetching them, and supplies the
// enabled URLs to the pipeline. The HTTP front-end mutates the feed lists
// concurrently with scans, so reads and writes of the slices and the files
// go through one mutex.
type Manager struct {
	feedsFile  string
	customFile string
	source     ports.EntrySource
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time

	mu          sync.Mutex
	defaults    []Feed
	customFeeds []Feed
}

var _ ports.FeedLister = (*Manager)(nil)

// NewManager loads both feed files, creating the default set on first run.
func NewManager(feedsFile, customFile string, source ports.EntrySource, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		feedsFile:  feedsFile,
		customFile: customFile,
		source:     source,
		logger:     logger,
		newID:      func() string { return uuid.NewString() },
		now:        time.Now,
	}

	defaults, err := m.loadFile(feedsFile)
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = m.seedDefaults()
		if err := m.saveFile(feedsFile, defaults); err != nil {
			return nil, err
		}
	}
	m.defaults = defaults

	custom, err := m.loadFile(customFile)
	if err != nil {
		return nil, err
	}
	m.customFeeds = custom

	return m, nil
}

// Validate checks that url serves a parseable feed whose entries carry the
// fields the pipeline needs.
func (m *Manager) Validate(ctx context.Context, url string) error {
	entries, err := m.source.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("feed contains no entries")
	}
	// Title and link presence is enforced by normalization; a feed whose
	// first entry carries no date field at all is rejected because every
	// entry would be filtered out anyway.
	first := entries[0]
	if !first.HasDate() && len(first.RawDates) == 0 {
		return fmt.Errorf("feed entries missing date information")
	}
	return nil
}

// Add validates and stores a new custom feed. Validation fetches over the
// network, so it runs before the lock is taken.
func (m *Manager) Add(ctx context.Context, url string) (Feed, error) {
	if err := m.Validate(ctx, url); err != nil {
		return Feed{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.allFeeds() {
		if f.URL == url {
			return Feed{}, fmt.Errorf("feed already exists")
		}
	}

	feed := Feed{
		ID:      m.newID(),
		URL:     url,
		Name:    feedNameFromURL(url),
		AddedAt: m.now(),
		Status:  "valid",
	}
	m.customFeeds = append(m.customFeeds, feed)
	if err := m.saveFile(m.customFile, m.customFeeds); err != nil {
		return Feed{}, err
	}
	return feed, nil
}

// Remove deletes a custom feed by id. Default feeds cannot be removed.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, f := range m.customFeeds {
		if f.ID == id {
			m.customFeeds = append(m.customFeeds[:i], m.customFeeds[i+1:]...)
			return m.saveFile(m.customFile, m.customFeeds)
		}
	}
	for _, f := range m.defaults {
		if f.ID == id {
			return fmt.Errorf("cannot remove default feed")
		}
	}
	return fmt.Errorf("feed not found")
}

// Feeds returns every managed feed with freshly validated status. The
// snapshot is taken under the lock; validation fetches happen outside it.
func (m *Manager) Feeds(ctx context.Context) []Feed {
	m.mu.Lock()
	all := m.allFeeds()
	m.mu.Unlock()

	for i := range all {
		if err := m.Validate(ctx, all[i].URL); err != nil {
			all[i].Status = "invalid"
			if m.logger != nil {
				m.logger.Debug("feed validation failed", "url", all[i].URL, "error", err)
			}
		} else {
			all[i].Status = "valid"
		}
	}
	return all
}

// GetEnabledFeeds returns the URLs of every configured feed, defaults first,
// in stable order. Feeds are not pre-fetched here: the scan pipeline fetches
// each one itself and counts the ones that fail, which keeps a run where
// every source is down distinguishable from a successful empty scan.
func (m *Manager) GetEnabledFeeds(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var urls []string
	for _, f := range m.allFeeds() {
		urls = append(urls, f.URL)
	}
	return urls, nil
}

// allFeeds copies both lists; callers must hold mu.
func (m *Manager) allFeeds() []Feed {
	all := make([]Feed, 0, len(m.defaults)+len(m.customFeeds))
	all = append(all, m.defaults...)
	all = append(all, m.customFeeds...)
	return all
}

func (m *Manager) seedDefaults() []Feed {
	names := make([]string, 0, len(defaultFeeds))
	for name := range defaultFeeds {
		names = append(names, name)
	}
	sort.Strings(names)

	feeds := make([]Feed, 0, len(names))
	for _, name := range names {
		feeds = append(feeds, Feed{
			ID:        m.newID(),
			URL:       defaultFeeds[name],
			Name:      strings.ToUpper(name),
			AddedAt:   m.now(),
			Status:    "unknown",
			IsDefault: true,
		})
	}
	return feeds
}

func (m *Manager) loadFile(path string) ([]Feed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feeds file %s: %w", path, err)
	}
	var file feedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}
	if file.Feeds == nil {
		file.Feeds = []Feed{}
	}
	return file.Feeds, nil
}

func (m *Manager) saveFile(path string, feeds []Feed) error {
	if feeds == nil {
		feeds = []Feed{}
	}
	raw, err := json.MarshalIndent(feedFile{Feeds: feeds}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feeds: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feeds dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write feeds file %s: %w", path, err)
	}
	return nil
}

// feedNameFromURL derives a readable name from the feed host.
func feedNameFromURL(url string) string {
	name := strings.TrimPrefix(url, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "www.")
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[:idx]
	}
	for _, tld := range []string{".com", ".org", ".net"} {
		name = strings.ReplaceAll(name, tld, "")
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
