package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

const (
	defaultFetchTimeout = 20 * time.Second
	maxDiscoveryHops    = 3
)

var feedLinkTypes = []string{"application/rss+xml", "application/atom+xml"}

// Fetcher normalizes heterogeneous feed URLs into canonical entries. It
// accepts plain RSS/Atom documents as well as HTML pages whose <head>
// advertises a feed via <link type="application/rss+xml|atom+xml">.
type Fetcher struct {
	client     *http.Client
	logger     *slog.Logger
	maxEntries int
}

var _ ports.EntrySource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; maxEntries of 0 keeps every entry.
func NewFetcher(client *http.Client, logger *slog.Logger, maxEntries int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{client: client, logger: logger, maxEntries: maxEntries}
}

// Fetch retrieves and normalizes one feed URL. Failures come back as
// *domain.FetchError or *domain.ParseError so the orchestrator can skip the
// feed without aborting the run.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	return f.fetch(ctx, feedURL, maxDiscoveryHops)
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string, hops int) ([]domain.Entry, error) {
	body, contentType, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if strings.Contains(strings.ToLower(contentType), "html") {
		if discovered := discoverFeedLink(body, feedURL); discovered != "" && hops > 0 {
			f.debug("discovered advertised feed", "page", feedURL, "feed", discovered)
			return f.fetch(ctx, discovered, hops-1)
		}
		// No advertised feed; the page itself may still parse as one.
	}

	entries, ok := f.parseFeed(body, feedURL)
	if ok {
		return entries, nil
	}

	// Feed parse found nothing; if the raw XML still carries item/entry
	// structure, fall back to lenient token-level extraction.
	if hasFeedStructure(body) {
		if entries, ok := f.parseLooseXML(body, feedURL); ok {
			return entries, nil
		}
	}

	return nil, &domain.ParseError{URL: feedURL, Reason: "no entries found by any strategy"}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", &domain.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", "signalscanner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &domain.FetchError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	return string(raw), resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) parseFeed(body, feedURL string) ([]domain.Entry, bool) {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil || parsed == nil || len(parsed.Items) == 0 {
		return nil, false
	}

	count := len(parsed.Items)
	if f.maxEntries > 0 && count > f.maxEntries {
		count = f.maxEntries
	}

	entries := make([]domain.Entry, 0, count)
	for _, item := range parsed.Items[:count] {
		if item.Title == "" || item.Link == "" {
			f.debug("dropping entry without title or link", "feed", feedURL)
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		entries = append(entries, domain.Entry{
			ID:          item.GUID,
			Title:       item.Title,
			Summary:     summary,
			Link:        item.Link,
			PublishedAt: entryDate(item),
			RawDates:    rawDates(item),
		})
	}

	return entries, len(entries) > 0
}

// entryDate probes published, updated, then created style fields and takes
// the first that parses; a zero time means no recognized date.
func entryDate(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if item.DublinCoreExt != nil {
		for _, raw := range item.DublinCoreExt.Date {
			if ts, ok := parseDate(raw); ok {
				return ts
			}
		}
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if ts, ok := parseDate(raw); ok {
			return ts
		}
	}
	return time.Time{}
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func rawDates(item *gofeed.Item) map[string]string {
	dates := map[string]string{}
	if item.Published != "" {
		dates["published"] = item.Published
	}
	if item.Updated != "" {
		dates["updated"] = item.Updated
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		dates["created"] = item.DublinCoreExt.Date[0]
	}
	if len(dates) == 0 {
		return nil
	}
	return dates
}

// discoverFeedLink scans an HTML document for <link> elements advertising an
// RSS or Atom feed and resolves the first match against the page URL.
func discoverFeedLink(body, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	for _, linkType := range feedLinkTypes {
		selection := doc.Find(fmt.Sprintf(`link[type=%q]`, linkType))
		if href, ok := selection.First().Attr("href"); ok && href != "" {
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			return base.ResolveReference(ref).String()
		}
	}

	return ""
}

// parseLooseXML extracts entries at the XML token level from documents the
// feed parser rejects outright, recognizing a minimal field vocabulary
// inside RSS <item> and Atom <entry> elements.
func (f *Fetcher) parseLooseXML(body, feedURL string) ([]domain.Entry, bool) {
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.Strict = false

	var entries []domain.Entry
	var current *looseEntry
	var field string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "item" || name == "entry" {
				current = &looseEntry{}
				continue
			}
			if current == nil {
				continue
			}
			switch name {
			case "title", "description", "summary", "pubDate", "published", "updated", "date":
				field = name
			case "link":
				field = name
				// Atom links carry the target in href.
				for _, attr := range t.Attr {
					if attr.Name.Local == "href" {
						current.link = attr.Value
					}
				}
			default:
				field = ""
			}
		case xml.CharData:
			if current == nil || field == "" {
				continue
			}
			current.setField(field, string(t))
		case xml.EndElement:
			field = ""
			if (t.Name.Local == "item" || t.Name.Local == "entry") && current != nil {
				if e, ok := current.toEntry(); ok {
					entries = append(entries, e)
				}
				current = nil
			}
		}
	}

	if f.maxEntries > 0 && len(entries) > f.maxEntries {
		entries = entries[:f.maxEntries]
	}
	if len(entries) == 0 {
		return nil, false
	}
	f.debug("entries recovered by loose parse", "feed", feedURL, "count", len(entries))
	return entries, true
}

type looseEntry struct {
	title   string
	summary string
	link    string
	dates   map[string]string
}

func (l *looseEntry) setField(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch name {
	case "title":
		l.title += value
	case "description", "summary":
		l.summary += value
	case "link":
		if l.link == "" {
			l.link = value
		}
	case "pubDate", "published", "updated", "date":
		if l.dates == nil {
			l.dates = map[string]string{}
		}
		l.dates[name] += value
	}
}

func (l *looseEntry) toEntry() (domain.Entry, bool) {
	if l.title == "" || l.link == "" {
		return domain.Entry{}, false
	}

	var published time.Time
	for _, raw := range l.dates {
		if ts, ok := parseDate(raw); ok {
			published = ts
			break
		}
	}

	var raws map[string]string
	if len(l.dates) > 0 {
		raws = l.dates
	}

	return domain.Entry{
		Title:       l.title,
		Summary:     l.summary,
		Link:        l.link,
		PublishedAt: published,
		RawDates:    raws,
	}, true
}

// hasFeedStructure walks the body as generic XML looking for RSS <item> or
// Atom <entry> elements, as a feed-presence probe only.
func hasFeedStructure(body string) bool {
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.Strict = false
	for {
		tok, err := decoder.Token()
		if err != nil {
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "item" {
			return true
		}
		if start.Name.Local == "entry" && start.Name.Space == "http://www.w3.org/2005/Atom" {
			return true
		}
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
