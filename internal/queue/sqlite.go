package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
)

// SQLite stores job attributes as expression text, one row per attribute.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the queue database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and lets ":memory:" work.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS job_attrs (
  job_id TEXT NOT NULL,
  name TEXT NOT NULL COLLATE NOCASE,
  expr TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (job_id, name)
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

const upsertAttr = `INSERT INTO job_attrs (job_id, name, expr, updated_at) VALUES (?, ?, ?, ?)
  ON CONFLICT (job_id, name) DO UPDATE SET expr = excluded.expr, updated_at = excluded.updated_at`

func (s *SQLite) Save(ctx context.Context, jobID string, rec *attr.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("queue.save", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertAttr)
	if err != nil {
		return apperrors.Internal("queue.save", err)
	}
	defer stmt.Close()

	ts := s.now().UnixMilli()
	for _, name := range rec.Names() {
		v, _ := rec.Lookup(name)
		if _, err := stmt.ExecContext(ctx, jobID, name, v.Text(), ts); err != nil {
			return apperrors.Internal("queue.save", fmt.Errorf("attribute %s: %w", name, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("queue.save", err)
	}
	return nil
}

func (s *SQLite) SetAttr(ctx context.Context, jobID, name, expr string) error {
	if _, err := s.db.ExecContext(ctx, upsertAttr, jobID, name, expr, s.now().UnixMilli()); err != nil {
		return apperrors.Internal("queue.setAttr", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, jobID string) (*attr.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, expr FROM job_attrs WHERE job_id = ? ORDER BY name`, jobID)
	if err != nil {
		return nil, apperrors.Internal("queue.load", err)
	}
	defer rows.Close()

	rec := attr.New()
	for rows.Next() {
		var name, expr string
		if err := rows.Scan(&name, &expr); err != nil {
			return nil, apperrors.Internal("queue.load", err)
		}
		rec.SetExpr(name, expr)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("queue.load", err)
	}
	if rec.Len() == 0 {
		return nil, apperrors.NotFound("job", jobID)
	}
	return rec, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

var _ Store = (*SQLite)(nil)
