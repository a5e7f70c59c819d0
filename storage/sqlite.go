// SQLite-backed storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interfaces
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkondo/datalyst/model"
)

// SqliteStorage implements ConversationStorage and AuditSink using SQLite.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS api_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			method TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			request_body TEXT,
			response_body TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_api_logs_subject
		ON api_logs(subject, timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStorage) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Save replaces the stored history for a session.
func (s *SqliteStorage) Save(ctx context.Context, sessionID string, history []model.Turn) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, turn := range history {
		_, err = stmt.ExecContext(ctx, sessionID, i, turn.Role, turn.Content)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load loads the history for a session.
// Returns empty slice if the session doesn't exist.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	history := []model.Turn{} // Start with empty slice, not nil
	for rows.Next() {
		var turn model.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		history = append(history, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return history, nil
}

// Delete removes a session and its history.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Exists checks if a session exists.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE session_id = ?",
		sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return count > 0, nil
}

// AppendAPILog records one API call.
func (s *SqliteStorage) AppendAPILog(ctx context.Context, entry APILogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_logs (subject, timestamp, method, endpoint, status_code, elapsed_ms, request_body, response_body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Subject, ts.Unix(), entry.Method, entry.Endpoint,
		entry.StatusCode, entry.ElapsedMs, entry.RequestBody, entry.ResponseBody)
	if err != nil {
		return fmt.Errorf("failed to append api log: %w", err)
	}
	return nil
}

// ListAPILogs returns a page of a subject's records, newest first.
func (s *SqliteStorage) ListAPILogs(ctx context.Context, subject string, limit, offset int) ([]APILogEntry, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM api_logs WHERE subject = ?", subject).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count api logs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, method, endpoint, status_code, elapsed_ms, request_body, response_body
		 FROM api_logs WHERE subject = ? ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		subject, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query api logs: %w", err)
	}
	defer rows.Close()

	logs := []APILogEntry{}
	for rows.Next() {
		var entry APILogEntry
		var ts int64
		if err := rows.Scan(&entry.ID, &ts, &entry.Method, &entry.Endpoint,
			&entry.StatusCode, &entry.ElapsedMs, &entry.RequestBody, &entry.ResponseBody); err != nil {
			return nil, 0, fmt.Errorf("failed to scan api log: %w", err)
		}
		entry.Subject = subject
		entry.Timestamp = time.Unix(ts, 0)
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating api logs: %w", err)
	}

	return logs, total, nil
}

// ClearAPILogs removes all of a subject's records.
func (s *SqliteStorage) ClearAPILogs(ctx context.Context, subject string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM api_logs WHERE subject = ?", subject)
	if err != nil {
		return fmt.Errorf("failed to clear api logs: %w", err)
	}
	return nil
}

// Verify interface compliance
var (
	_ ConversationStorage = (*SqliteStorage)(nil)
	_ AuditSink           = (*SqliteStorage)(nil)
)
