package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"signalscanner/internal/domain"
)

func TestBuilderGeneratesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := NewBuilder(dir, 0)
	b.now = func() time.Time { return time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC) }

	b.AddHeader(7)
	b.AddArticle(domain.ArticleResult{
		Title:       "Big Release",
		Link:        "https://example.com/release",
		Summary:     "Something shipped.",
		Rating:      "High",
		Rationale:   "Matters a lot.",
		PublishedAt: time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC),
	})

	path, err := b.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Base(path) != "signal_report_20260831_090000.txt" {
		t.Fatalf("unexpected report name: %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	content := string(raw)
	for _, want := range []string{"last 7 days", "Big Release", "High", "2026-08-29", "Matters a lot."} {
		if !strings.Contains(content, want) {
			t.Fatalf("report missing %q:\n%s", want, content)
		}
	}
}

func TestBuilderPrunesOldReports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{
		"signal_report_20260101_000000.txt",
		"signal_report_20260102_000000.txt",
		"signal_report_20260103_000000.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}

	b := NewBuilder(dir, 3)
	b.AddHeader(7)
	if _, err := b.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 reports after pruning, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Name() == "signal_report_20260101_000000.txt" {
			t.Fatalf("oldest report should have been pruned")
		}
	}
}

func TestBuilderEmptyRunStillRenders(t *testing.T) {
	t.Parallel()

	b := NewBuilder(t.TempDir(), 0)
	b.AddHeader(3)

	path, err := b.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(raw), "Articles: 0") {
		t.Fatalf("expected empty-run header, got:\n%s", raw)
	}
}
