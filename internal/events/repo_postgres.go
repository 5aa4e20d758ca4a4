package events

import (
	"context"
	"database/sql"
)

// PostgresRepo persists events in the pipeline_events table.
//
// Assumed schema:
//
//	pipeline_events (
//	  id UUID PRIMARY KEY,
//	  workspace_id TEXT NOT NULL,
//	  entry_id TEXT NOT NULL,
//	  type TEXT NOT NULL,
//	  from_status TEXT NOT NULL DEFAULT '',
//	  to_status TEXT NOT NULL DEFAULT '',
//	  payload JSONB,
//	  actor TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
// The table is INSERT-only; no UPDATE/DELETE statements exist in this package.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEventSQL = `
INSERT INTO pipeline_events (
  id, workspace_id, entry_id, type, from_status, to_status, payload, actor, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID,
		e.WorkspaceID,
		e.EntryID,
		e.Type,
		e.FromStatus,
		e.ToStatus,
		nullableJSON(e.Payload),
		e.Actor,
		e.CreatedAt,
	)
	return err
}

// InsertTx appends an event inside a caller-owned transaction, so the event
// commits atomically with the mutation it records.
func InsertTx(ctx context.Context, tx *sql.Tx, e Event) error {
	_, err := tx.ExecContext(ctx, insertEventSQL,
		e.ID,
		e.WorkspaceID,
		e.EntryID,
		e.Type,
		e.FromStatus,
		e.ToStatus,
		nullableJSON(e.Payload),
		e.Actor,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByEntry(ctx context.Context, workspaceID, entryID string) ([]Event, error) {
	const q = `
SELECT id, workspace_id, entry_id, type, from_status, to_status, payload, actor, created_at
FROM pipeline_events
WHERE workspace_id = $1 AND entry_id = $2
ORDER BY created_at ASC, id ASC
`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(
			&e.ID,
			&e.WorkspaceID,
			&e.EntryID,
			&e.Type,
			&e.FromStatus,
			&e.ToStatus,
			&payload,
			&e.Actor,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
