// Package storage provides conversation and audit-log storage.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping between memory and SQLite without API changes

package storage

import (
	"context"
	"time"

	"github.com/mkondo/datalyst/model"
)

// ConversationStorage stores plain-text conversation history per session.
// Only role and text cross this boundary; structured tool blocks are rebuilt
// by the agent loop on every run and never persisted.
type ConversationStorage interface {
	// Save replaces the stored history for a session.
	Save(ctx context.Context, sessionID string, history []model.Turn) error

	// Load loads the history for a session.
	// Returns empty slice (not nil) if the session doesn't exist.
	Load(ctx context.Context, sessionID string) ([]model.Turn, error)

	// Delete removes a session and its history.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// APILogEntry is one audited API call. Bodies are previews, not full payloads.
type APILogEntry struct {
	ID           int64     `json:"id"`
	Subject      string    `json:"-"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	Endpoint     string    `json:"endpoint"`
	StatusCode   int       `json:"status_code"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	RequestBody  string    `json:"request_body"`
	ResponseBody string    `json:"response_body"`
}

// AuditSink receives API-call audit records. Appends are best-effort from the
// caller's perspective; a failed append must not fail the user request.
type AuditSink interface {
	// AppendAPILog records one API call.
	AppendAPILog(ctx context.Context, entry APILogEntry) error

	// ListAPILogs returns a page of a subject's records, newest first, plus
	// the subject's total count.
	ListAPILogs(ctx context.Context, subject string, limit, offset int) ([]APILogEntry, int, error)

	// ClearAPILogs removes all of a subject's records.
	ClearAPILogs(ctx context.Context, subject string) error
}
