package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteKV implements KV backed by the kv table of a SQLite database.
type SQLiteKV struct {
	db *sql.DB

	// Prepared statements
	getValue    *sql.Stmt
	upsertValue *sql.Stmt
	deleteValue *sql.Stmt
	insertAudit *sql.Stmt
}

var _ KV = (*SQLiteKV)(nil)

// NewSQLiteKV creates a SQLiteKV from an already-opened and migrated database.
func NewSQLiteKV(db *sql.DB) (*SQLiteKV, error) {
	s := &SQLiteKV{db: db}

	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteKV) prepareStatements() error {
	var err error

	s.getValue, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	s.upsertValue, err = s.db.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.deleteValue, err = s.db.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	s.insertAudit, err = s.db.Prepare(`INSERT INTO audit_log (action, detail, ts) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}

	return nil
}

// Get returns the stored values for keys. Missing keys are omitted.
func (s *SQLiteKV) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		var value []byte
		err := s.getValue.QueryRowContext(ctx, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

// Set upserts every key of record in a single transaction.
func (s *SQLiteKV) Set(ctx context.Context, record map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := tx.StmtContext(ctx, s.upsertValue)
	ts := time.Now().UTC().Format(time.RFC3339)
	for key, value := range record {
		if _, err := stmt.ExecContext(ctx, key, value, ts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Delete removes keys; absent keys are ignored.
func (s *SQLiteKV) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if _, err := s.deleteValue.ExecContext(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// RecordAudit appends an entry to the audit log.
func (s *SQLiteKV) RecordAudit(ctx context.Context, action, detail string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.insertAudit.ExecContext(ctx, action, detail, ts); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// GetStats returns key count, total value size and the latest write time.
func (s *SQLiteKV) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var lastWrite sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0), MAX(updated_at) FROM kv",
	).Scan(&stats.Keys, &stats.ValueBytes, &lastWrite)
	if err != nil {
		return nil, fmt.Errorf("kv stats: %w", err)
	}

	if lastWrite.Valid {
		stats.LastWrite, _ = parseTimestamp(lastWrite.String)
	}

	return stats, nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteKV) Close() error {
	stmts := []*sql.Stmt{
		s.getValue, s.upsertValue, s.deleteValue, s.insertAudit,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
