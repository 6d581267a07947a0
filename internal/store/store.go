// Package store persists the latest grant status per source URL in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"grantwatch/internal/models"
	"grantwatch/pkg/logger"
)

var (
	// ErrStore marks failures of the underlying database.
	ErrStore = errors.New("store failure")
	// ErrNotFound is returned by Get when no record exists for the url.
	ErrNotFound = errors.New("grant not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS grants (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	timestamp    DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_updated TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_url ON grants(url);
`

type Store struct {
	db  *sql.DB
	log logger.Logger
}

// New wraps an open database. The schema is not touched; call Migrate.
func New(db *sql.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{db: db, log: log}
}

// Open opens (creating if needed) the SQLite file at path and applies the schema.
func Open(ctx context.Context, path string, log logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	// One connection makes this process a single writer; IMMEDIATE
	// transactions and the busy timeout serialize writers across processes.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug("grant store opened", logger.String("path", path))
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing schema: %w: %w", ErrStore, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) fail(op string, err error, fields ...logger.Field) error {
	s.log.Error("grant store "+op+" failed", append(fields, logger.Error(err))...)
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// Upsert records status for url as of now. An existing record keeps its id
// and first-seen time. Missing url or an unknown status is logged and
// skipped without touching the table.
func (s *Store) Upsert(ctx context.Context, url string, status models.Status, now time.Time) (models.Outcome, error) {
	if url == "" || !status.Valid() {
		s.log.Warn("invalid grant data, skipping",
			logger.String("url", url), logger.String("status", string(status)))
		return models.OutcomeSkipped, nil
	}
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.OutcomeSkipped, s.fail("upsert", err, logger.String("url", url))
	}
	defer tx.Rollback()

	var (
		id        int64
		firstSeen any
	)
	err = tx.QueryRowContext(ctx, `SELECT id, timestamp FROM grants WHERE url = ?`, url).Scan(&id, &firstSeen)
	outcome := models.OutcomeUpdated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = models.OutcomeInserted
		stamp := formatTime(now)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO grants (url, status, timestamp, last_updated) VALUES (?, ?, ?, ?)`,
			url, string(status), stamp, stamp)
	case err == nil:
		if fs, ok := parseTime(firstSeen); ok && now.Before(fs) {
			now = fs
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE grants SET status = ?, last_updated = ? WHERE id = ?`,
			string(status), formatTime(now), id)
	}
	if err != nil {
		return models.OutcomeSkipped, s.fail("upsert", err, logger.String("url", url))
	}

	if err := tx.Commit(); err != nil {
		return models.OutcomeSkipped, s.fail("upsert", err, logger.String("url", url))
	}
	s.log.Info("grant "+string(outcome), logger.String("url", url), logger.String("status", string(status)))
	return outcome, nil
}

// List returns every record ordered by id.
func (s *Store) List(ctx context.Context) ([]models.GrantSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, status FROM grants ORDER BY id ASC`)
	if err != nil {
		return nil, s.fail("list", err)
	}
	defer rows.Close()

	var out []models.GrantSummary
	for rows.Next() {
		var (
			g      models.GrantSummary
			status string
		)
		if err := rows.Scan(&g.ID, &g.URL, &status); err != nil {
			return nil, s.fail("list", err)
		}
		g.Status = models.Status(status)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list", err)
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM grants WHERE url = ?`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.fail("exists", err, logger.String("url", url))
	}
	return true, nil
}

// Get returns the full record for url, or ErrNotFound.
func (s *Store) Get(ctx context.Context, url string) (models.GrantRecord, error) {
	var (
		rec                   models.GrantRecord
		status                string
		firstSeen, lastUpdate any
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, status, timestamp, last_updated FROM grants WHERE url = ?`, url).
		Scan(&rec.ID, &rec.URL, &status, &firstSeen, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GrantRecord{}, ErrNotFound
	}
	if err != nil {
		return models.GrantRecord{}, s.fail("get", err, logger.String("url", url))
	}
	rec.Status = models.Status(status)
	rec.FirstSeen, _ = parseTime(firstSeen)
	rec.LastUpdated, _ = parseTime(lastUpdate)
	return rec, nil
}

// DeleteRange removes records with startID <= id <= endID and resets the id
// counter to the highest surviving id, or to zero when the table is empty.
// When nothing is in range the counter is left alone.
func (s *Store) DeleteRange(ctx context.Context, startID, endID int64) (int64, error) {
	fields := []logger.Field{logger.Int64("start_id", startID), logger.Int64("end_id", endID)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.fail("delete range", err, fields...)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM grants WHERE id BETWEEN ? AND ?`, startID, endID)
	if err != nil {
		return 0, s.fail("delete range", err, fields...)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail("delete range", err, fields...)
	}
	if deleted == 0 {
		s.log.Info("no grants in range", fields...)
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sqlite_sequence SET seq = COALESCE((SELECT MAX(id) FROM grants), 0) WHERE name = 'grants'`); err != nil {
		return 0, s.fail("delete range", err, fields...)
	}
	if err := tx.Commit(); err != nil {
		return 0, s.fail("delete range", err, fields...)
	}

	s.log.Info("grants deleted", append(fields, logger.Int64("deleted", deleted))...)
	return deleted, nil
}

// DeleteByID removes one record and reports whether it existed.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE id = ?`, id)
	if err != nil {
		return false, s.fail("delete", err, logger.Int64("id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("delete", err, logger.Int64("id", id))
	}
	if n > 0 {
		s.log.Info("grant deleted", logger.Int64("id", id))
	}
	return n > 0, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts what the driver hands back for a timestamp column:
// time.Time for DATETIME columns, text otherwise.
func parseTime(v any) (time.Time, bool) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
