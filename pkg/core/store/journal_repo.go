package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// JournalEntry is one committed catalog mutation.
type JournalEntry struct {
	ProposalID string    `json:"proposal_id"`
	Action     string    `json:"action"` // "create" or "update"
	Identity   string    `json:"identity"`
	Field      string    `json:"field,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value"`
	AppliedAt  time.Time `json:"applied_at"`
}

// JournalRepo keeps an append-only audit trail of committed writes in Postgres.
// The spreadsheet stays the source of truth; the journal is for the operator.
type JournalRepo struct {
	pool *pgxpool.Pool
}

// NewJournalRepo creates a new journal repository
func NewJournalRepo(pool *pgxpool.Pool) *JournalRepo {
	return &JournalRepo{pool: pool}
}

// EnsureSchema creates the journal table if needed.
func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_journal (
			id          BIGSERIAL PRIMARY KEY,
			proposal_id TEXT NOT NULL,
			action      TEXT NOT NULL,
			identity    TEXT NOT NULL,
			field       TEXT NOT NULL DEFAULT '',
			old_value   TEXT NOT NULL DEFAULT '',
			new_value   TEXT NOT NULL DEFAULT '',
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create catalog_journal: %w", err)
	}
	return nil
}

// Record appends one entry.
func (r *JournalRepo) Record(ctx context.Context, e JournalEntry) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now()
	}

	query := `
		INSERT INTO catalog_journal (proposal_id, action, identity, field, old_value, new_value, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, e.ProposalID, e.Action, e.Identity, e.Field, e.OldValue, e.NewValue, e.AppliedAt)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT proposal_id, action, identity, field, old_value, new_value, applied_at
		FROM catalog_journal
		ORDER BY applied_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ProposalID, &e.Action, &e.Identity, &e.Field, &e.OldValue, &e.NewValue, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
