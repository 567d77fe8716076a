package feed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"signalscanner/internal/domain"
)

type stubSource struct {
	entries map[string][]domain.Entry
	err     map[string]error
}

func (s *stubSource) Fetch(ctx context.Context, url string) ([]domain.Entry, error) {
	if err, ok := s.err[url]; ok {
		return nil, err
	}
	return s.entries[url], nil
}

func datedEntry() []domain.Entry {
	return []domain.Entry{{
		Title:       "Entry",
		Link:        "https://example.com/entry",
		PublishedAt: time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
	}}
}

func newTestManager(t *testing.T, source *stubSource) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "feeds.json"), filepath.Join(dir, "custom_feeds.json"), source, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManagerSeedsDefaults(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &stubSource{})
	if len(m.defaults) != len(defaultFeeds) {
		t.Fatalf("expected %d default feeds, got %d", len(defaultFeeds), len(m.defaults))
	}
	for _, f := range m.defaults {
		if f.ID == "" || f.URL == "" || !f.IsDefault {
			t.Fatalf("malformed default feed: %+v", f)
		}
	}
}

func TestManagerSeededDefaultsSurviveReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	feedsFile := filepath.Join(dir, "feeds.json")
	customFile := filepath.Join(dir, "custom_feeds.json")

	first, err := NewManager(feedsFile, customFile, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	second, err := NewManager(feedsFile, customFile, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("NewManager reload: %v", err)
	}

	if len(first.defaults) != len(second.defaults) {
		t.Fatalf("defaults count changed across reload: %d vs %d", len(first.defaults), len(second.defaults))
	}
	if first.defaults[0].ID != second.defaults[0].ID {
		t.Fatalf("default feed ids not stable across reload")
	}
}

func TestManagerAddAndRemoveCustomFeed(t *testing.T) {
	t.Parallel()

	url := "https://blog.example.com/rss"
	source := &stubSource{entries: map[string][]domain.Entry{url: datedEntry()}}
	m := newTestManager(t, source)

	feed, err := m.Add(context.Background(), url)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if feed.ID == "" || feed.IsDefault {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if feed.Name != "Blog Example" {
		t.Fatalf("unexpected derived name: %q", feed.Name)
	}

	if _, err := m.Add(context.Background(), url); err == nil {
		t.Fatalf("expected duplicate feed to be rejected")
	}

	if err := m.Remove(feed.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := m.Remove(feed.ID); err == nil {
		t.Fatalf("expected second remove to fail")
	}
}

func TestManagerRejectsInvalidFeed(t *testing.T) {
	t.Parallel()

	url := "https://broken.example.com/rss"
	source := &stubSource{err: map[string]error{url: errors.New("unreachable")}}
	m := newTestManager(t, source)

	if _, err := m.Add(context.Background(), url); err == nil {
		t.Fatalf("expected invalid feed to be rejected")
	}
}

func TestManagerRejectsDatelessFeed(t *testing.T) {
	t.Parallel()

	url := "https://dateless.example.com/rss"
	source := &stubSource{entries: map[string][]domain.Entry{
		url: {{Title: "T", Link: "https://dateless.example.com/a"}},
	}}
	m := newTestManager(t, source)

	if err := m.Validate(context.Background(), url); err == nil {
		t.Fatalf("expected dateless feed to fail validation")
	}
}

func TestManagerCannotRemoveDefaultFeed(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &stubSource{})
	if err := m.Remove(m.defaults[0].ID); err == nil {
		t.Fatalf("expected default feed removal to fail")
	}
}

func TestGetEnabledFeedsReturnsAllConfigured(t *testing.T) {
	t.Parallel()

	source := &stubSource{entries: map[string][]domain.Entry{}, err: map[string]error{}}
	m := newTestManager(t, source)

	// Unreachable feeds stay in the list: the scan pipeline fetches each
	// feed itself and counts the failures, so filtering here would hide
	// dead sources from the run's diagnostics.
	for _, f := range m.defaults {
		source.err[f.URL] = errors.New("unreachable")
	}

	custom := "https://blog.example.com/rss"
	source.entries[custom] = datedEntry()
	delete(source.err, custom)
	if _, err := m.Add(context.Background(), custom); err != nil {
		t.Fatalf("Add: %v", err)
	}

	urls, err := m.GetEnabledFeeds(context.Background())
	if err != nil {
		t.Fatalf("GetEnabledFeeds: %v", err)
	}
	if len(urls) != len(defaultFeeds)+1 {
		t.Fatalf("expected %d urls, got %v", len(defaultFeeds)+1, urls)
	}
	if urls[len(urls)-1] != custom {
		t.Fatalf("custom feed should come after defaults: %v", urls)
	}
}

func TestFeedsReportsValidationStatus(t *testing.T) {
	t.Parallel()

	source := &stubSource{entries: map[string][]domain.Entry{}, err: map[string]error{}}
	m := newTestManager(t, source)

	valid := m.defaults[0].URL
	source.entries[valid] = datedEntry()
	for _, f := range m.defaults[1:] {
		source.err[f.URL] = errors.New("unreachable")
	}

	byStatus := map[string]int{}
	for _, f := range m.Feeds(context.Background()) {
		byStatus[f.Status]++
	}
	if byStatus["valid"] != 1 || byStatus["invalid"] != len(defaultFeeds)-1 {
		t.Fatalf("unexpected status counts: %v", byStatus)
	}
}

func TestManagerConcurrentAddAndList(t *testing.T) {
	t.Parallel()

	source := &stubSource{entries: map[string][]domain.Entry{}}
	m := newTestManager(t, source)

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://blog%d.example.com/rss", i)
		source.entries[urls[i]] = datedEntry()
	}

	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if _, err := m.Add(context.Background(), url); err != nil {
				t.Errorf("Add %s: %v", url, err)
			}
		}(url)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.GetEnabledFeeds(context.Background()); err != nil {
				t.Errorf("GetEnabledFeeds: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := m.GetEnabledFeeds(context.Background())
	if err != nil {
		t.Fatalf("GetEnabledFeeds: %v", err)
	}
	if len(final) != len(defaultFeeds)+len(urls) {
		t.Fatalf("expected %d feeds after concurrent adds, got %d", len(defaultFeeds)+len(urls), len(final))
	}
}
