package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

// SQLiteRepository persists completed scans and their results for audit.
type SQLiteRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ScanHistory = (*SQLiteRepository)(nil)

// Open connects to the sqlite database at path and ensures the schema.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	repo := NewSQLiteRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wires an existing sql.DB.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Migrate creates the history tables when absent.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			lookback_days INTEGER NOT NULL,
			feeds_scanned INTEGER NOT NULL,
			feeds_failed INTEGER NOT NULL,
			report_path TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scan_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			link TEXT NOT NULL,
			summary TEXT NOT NULL,
			rating TEXT NOT NULL,
			rationale TEXT NOT NULL,
			published_at TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveScan stores one run and its results in a single transaction.
func (r *SQLiteRepository) SaveScan(ctx context.Context, record domain.ScanRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.
		Insert("scans").
		Columns("started_at", "finished_at", "lookback_days", "feeds_scanned", "feeds_failed", "report_path").
		Values(record.StartedAt, record.FinishedAt, record.LookbackDays, record.FeedsScanned, record.FeedsFailed, record.ReportPath).
		ToSql()
	if err != nil {
		return fmt.Errorf("build scan insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}

	for _, result := range record.Results {
		var publishedAt any
		if !result.PublishedAt.IsZero() {
			publishedAt = result.PublishedAt
		}
		query, args, err := r.sb.
			Insert("scan_results").
			Columns("scan_id", "title", "link", "summary", "rating", "rationale", "published_at").
			Values(scanID, result.Title, result.Link, result.Summary, result.Rating, result.Rationale, publishedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build result insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert result %q: %w", result.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan: %w", err)
	}
	return nil
}

// RecentScans returns up to limit most recent runs, results included.
func (r *SQLiteRepository) RecentScans(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := r.sb.
		Select("id", "started_at", "finished_at", "lookback_days", "feeds_scanned", "feeds_failed", "report_path").
		From("scans").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scans query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var records []domain.ScanRecord
	for rows.Next() {
		var rec domain.ScanRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.LookbackDays, &rec.FeedsScanned, &rec.FeedsFailed, &rec.ReportPath); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	for i := range records {
		results, err := r.scanResults(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Results = results
	}
	return records, nil
}

func (r *SQLiteRepository) scanResults(ctx context.Context, scanID int64) ([]domain.ArticleResult, error) {
	query, args, err := r.sb.
		Select("title", "link", "summary", "rating", "rationale", "published_at").
		From("scan_results").
		Where(sq.Eq{"scan_id": scanID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build results query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []domain.ArticleResult
	for rows.Next() {
		var res domain.ArticleResult
		var publishedAt sql.NullTime
		if err := rows.Scan(&res.Title, &res.Link, &res.Summary, &res.Rating, &res.Rationale, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		if publishedAt.Valid {
			res.PublishedAt = publishedAt.Time
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}
