// Package audit appends immutable records of privileged state changes.
//
// Entries are written inside the caller's transaction so the audited change
// and its record commit or roll back together. The audit_logs table rejects
// UPDATE and DELETE at the trigger level.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	ActionDisputeEscalated = "dispute_escalated"
)

var (
	ErrMissingAction = errors.New("audit: action required")
	ErrMissingActor  = errors.New("audit: actor required")
)

// Entry is a single append-only audit record.
type Entry struct {
	ID        string
	Action    string
	ActorID   string
	Payload   map[string]any
	CreatedAt time.Time
}

// Writer appends audit entries within an open transaction.
type Writer struct {
	idGenerator func() string
}

func NewWriter() *Writer {
	return &Writer{idGenerator: uuid.NewString}
}

func (w *Writer) WithIDGenerator(gen func() string) *Writer {
	w.idGenerator = gen
	return w
}

// Append inserts the entry and returns it with the generated id and the
// transaction timestamp.
func (w *Writer) Append(ctx context.Context, tx pgx.Tx, entry Entry) (Entry, error) {
	if entry.Action == "" {
		return Entry{}, ErrMissingAction
	}
	if entry.ActorID == "" {
		return Entry{}, ErrMissingActor
	}
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal payload: %w", err)
	}

	entry.ID = w.idGenerator()
	entry.Payload = payload

	const insertSQL = `
		INSERT INTO audit_logs (id, action, actor_id, payload)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insertSQL, entry.ID, entry.Action, entry.ActorID, body).Scan(&entry.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("audit: insert %s: %w", entry.Action, err)
	}
	return entry, nil
}
