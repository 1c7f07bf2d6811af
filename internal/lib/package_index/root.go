package package_index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	slug       TEXT NOT NULL,
	version    TEXT NOT NULL,
	path       TEXT NOT NULL,
	url        TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	staged_at  TEXT NOT NULL,
	PRIMARY KEY (slug, version)
)`

// Index records staged packages in a SQLite database. It satisfies
// stager.Recorder.
type Index struct {
	db *sql.DB
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Set("mode", "rwc")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens or creates the index at dbPath.
func Open(ctx context.Context, dbPath string) (*Index, error) {
	trimmed := strings.TrimSpace(dbPath)
	if trimmed == "" {
		return nil, fmt.Errorf("open package index: empty path")
	}
	db, err := sql.Open("sqlite", buildDSN(trimmed))
	if err != nil {
		return nil, fmt.Errorf("open package index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping package index: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create package index schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

// Record upserts a staged package.
func (i *Index) Record(ctx context.Context, pkg stager.CachedPackage) error {
	stagedAt := pkg.StagedAt
	if stagedAt.IsZero() {
		stagedAt = time.Now()
	}
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO packages (slug, version, path, url, source_url, size, staged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug, version) DO UPDATE SET
			path = excluded.path,
			url = excluded.url,
			source_url = excluded.source_url,
			size = excluded.size,
			staged_at = excluded.staged_at
	`, pkg.Slug, pkg.Version, pkg.Path, pkg.URL, pkg.SourceURL, pkg.Size, stagedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record %s %s: %w", pkg.Slug, pkg.Version, err)
	}
	return nil
}

// List returns all recorded packages, newest first.
func (i *Index) List(ctx context.Context) ([]stager.CachedPackage, error) {
	return i.query(ctx, `
		SELECT slug, version, path, url, source_url, size, staged_at
		FROM packages
		ORDER BY staged_at DESC, slug, version
	`)
}

// ForSlug returns the recorded versions of one slug, newest first.
func (i *Index) ForSlug(ctx context.Context, slug string) ([]stager.CachedPackage, error) {
	return i.query(ctx, `
		SELECT slug, version, path, url, source_url, size, staged_at
		FROM packages
		WHERE slug = ?
		ORDER BY staged_at DESC, version
	`, slug)
}

func (i *Index) query(ctx context.Context, query string, args ...any) ([]stager.CachedPackage, error) {
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var packages []stager.CachedPackage
	for rows.Next() {
		var pkg stager.CachedPackage
		var stagedAt string
		if err := rows.Scan(&pkg.Slug, &pkg.Version, &pkg.Path, &pkg.URL, &pkg.SourceURL, &pkg.Size, &stagedAt); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, stagedAt); err == nil {
			pkg.StagedAt = t
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}
