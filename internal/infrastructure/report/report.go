package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

const (
	defaultMaxReports = 30
	filePrefix        = "signal_report_"
	fileExt           = ".txt"
)

// Builder accumulates one header and N articles, then renders a plain-text
// report artifact into the reports directory. Old reports beyond the
// retention limit are pruned on generation.
type Builder struct {
	dir          string
	maxReports   int
	now          func() time.Time
	lookbackDays int
	articles     []domain.ArticleResult
}

var _ ports.ReportBuilder = (*Builder)(nil)

// NewBuilder targets dir; maxReports <= 0 selects the default retention.
func NewBuilder(dir string, maxReports int) *Builder {
	if maxReports <= 0 {
		maxReports = defaultMaxReports
	}
	return &Builder{dir: dir, maxReports: maxReports, now: time.Now}
}

// AddHeader starts a new report covering the given lookback window. Any
// articles accumulated from a previous run are discarded.
func (b *Builder) AddHeader(lookbackDays int) {
	b.lookbackDays = lookbackDays
	b.articles = nil
}

// AddArticle appends one evaluated article in discovery order.
func (b *Builder) AddArticle(result domain.ArticleResult) {
	b.articles = append(b.articles, result)
}

// Generate renders the report file and returns its path.
func (b *Builder) Generate() (string, error) {
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	now := b.now()
	path := filepath.Join(b.dir, fmt.Sprintf("%s%s%s", filePrefix, now.Format("20060102_150405"), fileExt))

	if err := os.WriteFile(path, []byte(b.render(now)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if err := b.prune(); err != nil {
		return path, fmt.Errorf("prune old reports: %w", err)
	}
	return path, nil
}

func (b *Builder) render(now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Technology Signal Report\n")
	fmt.Fprintf(&sb, "Generated: %s\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Window: last %d days\n", b.lookbackDays)
	fmt.Fprintf(&sb, "Articles: %d\n\n", len(b.articles))

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"#", "Title", "Rating", "Published"})
	for i, a := range b.articles {
		published := ""
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Format("2006-01-02")
		}
		tw.AppendRow(table.Row{i + 1, a.Title, a.Rating, published})
	}
	sb.WriteString(tw.Render())
	sb.WriteString("\n")

	for i, a := range b.articles {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, a.Title)
		fmt.Fprintf(&sb, "   Link: %s\n", a.Link)
		if a.Rating != "" {
			fmt.Fprintf(&sb, "   Rating: %s\n", a.Rating)
		}
		if a.Summary != "" {
			fmt.Fprintf(&sb, "   Summary: %s\n", a.Summary)
		}
		if a.Rationale != "" {
			fmt.Fprintf(&sb, "   Rationale: %s\n", a.Rationale)
		}
	}

	return sb.String()
}

// prune keeps only the newest maxReports files; timestamped names sort
// chronologically, so lexical order is enough.
func (b *Builder) prune() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt) {
			names = append(names, name)
		}
	}
	if len(names) <= b.maxReports {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-b.maxReports] {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
