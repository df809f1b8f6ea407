package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursedl/internal/modules/run/domain"
	runout "coursedl/internal/modules/run/port/out"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writes from parallel fetches.
	db.SetMaxOpenConns(1)
	ledger := &SQLiteLedger{db: db}
	if err := ledger.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

var _ runout.Ledger = (*SQLiteLedger)(nil)

func (l *SQLiteLedger) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS downloads (
  dest_path TEXT PRIMARY KEY,
  run_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  name TEXT NOT NULL,
  url TEXT NOT NULL,
  status TEXT NOT NULL,
  bytes INTEGER NOT NULL,
  error TEXT,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_course ON downloads(course_id, status);
`
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create downloads table: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Record(ctx context.Context, entry domain.Entry) error {
	const stmt = `
INSERT INTO downloads (dest_path, run_id, course_id, name, url, status, bytes, error, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dest_path) DO UPDATE SET
  run_id=excluded.run_id,
  course_id=excluded.course_id,
  name=excluded.name,
  url=excluded.url,
  status=excluded.status,
  bytes=excluded.bytes,
  error=excluded.error,
  updated_at=excluded.updated_at;
`
	_, err := l.db.ExecContext(ctx, stmt,
		entry.DestPath,
		entry.RunID,
		entry.CourseID,
		entry.Name,
		entry.URL,
		entry.Status,
		entry.Bytes,
		entry.Error,
		entry.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert download: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) List(ctx context.Context, query domain.Query) ([]domain.Entry, error) {
	var (
		where []string
		args  []any
	)
	if query.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, query.CourseID)
	}
	statuses := query.Statuses
	if query.FailedOnly {
		statuses = []string{domain.StatusFailed}
	}
	if len(statuses) > 0 {
		where = append(where, "status IN (?"+strings.Repeat(", ?", len(statuses)-1)+")")
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	q := `SELECT dest_path, run_id, course_id, name, url, status, bytes, COALESCE(error, ''), updated_at FROM downloads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY course_id, dest_path"
	if query.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Entry
	for rows.Next() {
		var (
			e       domain.Entry
			updated string
		)
		if err := rows.Scan(&e.DestPath, &e.RunID, &e.CourseID, &e.Name, &e.URL, &e.Status, &e.Bytes, &e.Error, &updated); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		if t, err := time.Parse(timeLayout, updated); err == nil {
			e.UpdatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return out, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
