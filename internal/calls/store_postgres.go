package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"recruit-platform/internal/events"
	"recruit-platform/pkg/utils"
)

// PostgresStore persists scheduled calls and call logs.
//
// Assumed schema:
//
//	scheduled_calls (
//	  id UUID PRIMARY KEY,
//	  workspace_id TEXT NOT NULL,
//	  entry_id TEXT NOT NULL,
//	  type TEXT NOT NULL,
//	  phone_number TEXT NOT NULL,
//	  contact_name TEXT NOT NULL DEFAULT '',
//	  to_client BOOLEAN NOT NULL DEFAULT FALSE,
//	  script_id TEXT NOT NULL DEFAULT '',
//	  status TEXT NOT NULL,
//	  outcome TEXT NOT NULL DEFAULT '',
//	  priority INT NOT NULL DEFAULT 100,
//	  scheduled_for TIMESTAMPTZ NOT NULL,
//	  attempts INT NOT NULL DEFAULT 0,
//	  max_attempts INT NOT NULL,
//	  last_attempt_at TIMESTAMPTZ,
//	  next_retry_at TIMESTAMPTZ,
//	  claimed_at TIMESTAMPTZ,
//	  completed_at TIMESTAMPTZ,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//
//	call_logs (
//	  id UUID PRIMARY KEY,
//	  workspace_id TEXT NOT NULL,
//	  call_id TEXT NOT NULL,
//	  entry_id TEXT NOT NULL,
//	  attempt INT NOT NULL,
//	  outcome TEXT NOT NULL,
//	  duration_seconds INT NOT NULL DEFAULT 0,
//	  transcript TEXT NOT NULL DEFAULT '',
//	  extracted_data JSONB,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
// call_logs is INSERT-only.
// Recommended index on scheduled_calls: (status, scheduled_for, priority).

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const callColumns = `
id, workspace_id, entry_id, type, phone_number, contact_name, to_client, script_id,
status, outcome, priority, scheduled_for, attempts, max_attempts,
last_attempt_at, next_retry_at, claimed_at, completed_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c ScheduledCall, ev events.Event) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO scheduled_calls (` + callColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)
`
		if _, err := tx.ExecContext(ctx, q,
			c.ID, c.WorkspaceID, c.EntryID, c.Type, c.PhoneNumber, c.ContactName,
			c.ToClient, c.ScriptID, c.Status, c.Outcome, c.Priority, c.ScheduledFor,
			c.Attempts, c.MaxAttempts, c.LastAttemptAt, c.NextRetryAt, c.ClaimedAt,
			c.CompletedAt, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return err
		}
		return events.InsertTx(ctx, tx, ev)
	})
}

func (s *PostgresStore) Get(ctx context.Context, workspaceID, callID string) (ScheduledCall, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE workspace_id = $1 AND id = $2
`
	return scanCall(s.db.QueryRowContext(ctx, q, workspaceID, callID))
}

func (s *PostgresStore) Update(ctx context.Context, c ScheduledCall, expect CallStatus, ev *events.Event, lg *CallLog) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `
SELECT status FROM scheduled_calls
WHERE workspace_id = $1 AND id = $2
FOR UPDATE
`
		var cur CallStatus
		if err := tx.QueryRowContext(ctx, lockQ, c.WorkspaceID, c.ID).Scan(&cur); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if cur != expect {
			return ErrConflict
		}

		const q = `
UPDATE scheduled_calls
SET status = $3, outcome = $4, priority = $5, scheduled_for = $6, attempts = $7,
    last_attempt_at = $8, next_retry_at = $9, claimed_at = $10, completed_at = $11,
    updated_at = $12
WHERE workspace_id = $1 AND id = $2
`
		if _, err := tx.ExecContext(ctx, q,
			c.WorkspaceID, c.ID, c.Status, c.Outcome, c.Priority, c.ScheduledFor,
			c.Attempts, c.LastAttemptAt, c.NextRetryAt, c.ClaimedAt, c.CompletedAt,
			c.UpdatedAt,
		); err != nil {
			return err
		}
		if lg != nil {
			if err := insertCallLog(ctx, tx, *lg); err != nil {
				return err
			}
		}
		if ev != nil {
			return events.InsertTx(ctx, tx, *ev)
		}
		return nil
	})
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledCall, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE status = $1 AND scheduled_for <= $2
ORDER BY priority ASC, scheduled_for ASC
LIMIT $3
`
	return s.queryCalls(ctx, q, CallStatusPending, now, limit)
}

func (s *PostgresStore) ListDueForWorkspace(ctx context.Context, workspaceID string, now time.Time, limit int) ([]ScheduledCall, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE workspace_id = $1 AND status = $2 AND scheduled_for <= $3
ORDER BY priority ASC, scheduled_for ASC
LIMIT $4
`
	return s.queryCalls(ctx, q, workspaceID, CallStatusPending, now, limit)
}

func (s *PostgresStore) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]ScheduledCall, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE status = $1 AND claimed_at IS NOT NULL AND claimed_at < $2
ORDER BY claimed_at ASC
LIMIT $3
`
	return s.queryCalls(ctx, q, CallStatusInProgress, claimedBefore, limit)
}

func (s *PostgresStore) ListForEntry(ctx context.Context, workspaceID, entryID string) ([]ScheduledCall, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE workspace_id = $1 AND entry_id = $2
ORDER BY created_at ASC
`
	return s.queryCalls(ctx, q, workspaceID, entryID)
}

func (s *PostgresStore) CancelPendingForEntry(ctx context.Context, workspaceID, entryID string, now time.Time, ev events.Event) (int, error) {
	var n int
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE scheduled_calls
SET status = $4, updated_at = $3
WHERE workspace_id = $1 AND entry_id = $2 AND status = $5
`
		res, err := tx.ExecContext(ctx, q, workspaceID, entryID, now, CallStatusCancelled, CallStatusPending)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n = int(affected)
		if n == 0 {
			return nil
		}
		return events.InsertTx(ctx, tx, ev)
	})
	return n, err
}

func (s *PostgresStore) ListLogs(ctx context.Context, workspaceID, callID string) ([]CallLog, error) {
	const q = `
SELECT id, workspace_id, call_id, entry_id, attempt, outcome, duration_seconds, transcript, extracted_data, created_at
FROM call_logs
WHERE workspace_id = $1 AND call_id = $2
ORDER BY attempt ASC
`
	rows, err := s.db.QueryContext(ctx, q, workspaceID, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallLog
	for rows.Next() {
		var lg CallLog
		var data []byte
		if err := rows.Scan(
			&lg.ID, &lg.WorkspaceID, &lg.CallID, &lg.EntryID, &lg.Attempt,
			&lg.Outcome, &lg.DurationSeconds, &lg.Transcript, &data, &lg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			lg.ExtractedData = data
		}
		out = append(out, lg)
	}
	return out, rows.Err()
}

func insertCallLog(ctx context.Context, tx *sql.Tx, lg CallLog) error {
	const q = `
INSERT INTO call_logs (
  id, workspace_id, call_id, entry_id, attempt, outcome, duration_seconds, transcript, extracted_data, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	var data any
	if len(lg.ExtractedData) > 0 {
		data = []byte(lg.ExtractedData)
	}
	_, err := tx.ExecContext(ctx, q,
		lg.ID, lg.WorkspaceID, lg.CallID, lg.EntryID, lg.Attempt,
		lg.Outcome, lg.DurationSeconds, lg.Transcript, data, lg.CreatedAt,
	)
	return err
}

func (s *PostgresStore) queryCalls(ctx context.Context, q string, args ...any) ([]ScheduledCall, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (ScheduledCall, error) {
	var c ScheduledCall
	if err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.EntryID, &c.Type, &c.PhoneNumber, &c.ContactName,
		&c.ToClient, &c.ScriptID, &c.Status, &c.Outcome, &c.Priority, &c.ScheduledFor,
		&c.Attempts, &c.MaxAttempts, &c.LastAttemptAt, &c.NextRetryAt, &c.ClaimedAt,
		&c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduledCall{}, ErrNotFound
		}
		return ScheduledCall{}, err
	}
	return c, nil
}
