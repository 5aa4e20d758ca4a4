package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"recruit-platform/internal/events"
	"recruit-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists entries in the pipeline_entries table.
//
// Assumed schema:
//
//	pipeline_entries (
//	  id UUID PRIMARY KEY,
//	  workspace_id TEXT NOT NULL,
//	  candidate_id TEXT NOT NULL,
//	  client_id TEXT NOT NULL DEFAULT '',
//	  status TEXT NOT NULL,
//	  status_updated_at TIMESTAMPTZ NOT NULL,
//	  stage_times JSONB NOT NULL DEFAULT '{}',
//	  candidate_name TEXT NOT NULL DEFAULT '',
//	  candidate_phone TEXT NOT NULL DEFAULT '',
//	  right_to_work BOOLEAN,
//	  registration_info TEXT NOT NULL DEFAULT '',
//	  commute_minutes INT,
//	  expected_rate TEXT NOT NULL DEFAULT '',
//	  notes TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//
// Recommended index: (workspace_id, candidate_id, status).
//
// A partial unique index backs the one-open-entry-per-candidate rule against
// concurrent creates; CreateEntry maps its violation to ErrConflict:
//
//	CREATE UNIQUE INDEX pipeline_entries_open_unmatched
//	ON pipeline_entries (workspace_id, candidate_id)
//	WHERE client_id = '' AND status NOT IN ('not_interested','placed','rejected','cancelled');

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const entryColumns = `
id, workspace_id, candidate_id, client_id, status, status_updated_at, stage_times,
candidate_name, candidate_phone, right_to_work, registration_info, commute_minutes,
expected_rate, notes, created_at, updated_at`

func (s *PostgresStore) CreateEntry(ctx context.Context, e Entry, ev events.Event) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO pipeline_entries (` + entryColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
`
		stage, err := marshalStageTimes(e.StageTimes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q,
			e.ID,
			e.WorkspaceID,
			e.CandidateID,
			e.ClientID,
			e.Status,
			e.StatusUpdatedAt,
			stage,
			e.CandidateName,
			e.CandidatePhone,
			e.RightToWork,
			e.RegistrationInfo,
			e.CommuteMinutes,
			e.ExpectedRate,
			e.Notes,
			e.CreatedAt,
			e.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return events.InsertTx(ctx, tx, ev)
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) GetEntry(ctx context.Context, workspaceID, entryID string) (Entry, error) {
	const q = `
SELECT ` + entryColumns + `
FROM pipeline_entries
WHERE workspace_id = $1 AND id = $2
`
	return scanEntry(s.db.QueryRowContext(ctx, q, workspaceID, entryID))
}

func (s *PostgresStore) FindOpenUnmatched(ctx context.Context, workspaceID, candidateID string) (Entry, bool, error) {
	// Terminal statuses have no outgoing edges in the transition table; the
	// table is compiled here rather than duplicated in SQL.
	terminals := terminalStatusList()
	const q = `
SELECT ` + entryColumns + `
FROM pipeline_entries
WHERE workspace_id = $1 AND candidate_id = $2 AND client_id = '' AND status <> ALL($3)
ORDER BY created_at ASC
LIMIT 1
`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, workspaceID, candidateID, terminals))
	if errors.Is(err, ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, e Entry, expect Status, ev events.Event) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row and verify it has not moved since the caller read it.
		const lockQ = `
SELECT status FROM pipeline_entries
WHERE workspace_id = $1 AND id = $2
FOR UPDATE
`
		var cur Status
		if err := tx.QueryRowContext(ctx, lockQ, e.WorkspaceID, e.ID).Scan(&cur); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if cur != expect {
			return ErrConflict
		}

		stage, err := marshalStageTimes(e.StageTimes)
		if err != nil {
			return err
		}
		const q = `
UPDATE pipeline_entries
SET client_id = $3, status = $4, status_updated_at = $5, stage_times = $6,
    candidate_name = $7, candidate_phone = $8, right_to_work = $9,
    registration_info = $10, commute_minutes = $11, expected_rate = $12,
    notes = $13, updated_at = $14
WHERE workspace_id = $1 AND id = $2
`
		if _, err := tx.ExecContext(ctx, q,
			e.WorkspaceID,
			e.ID,
			e.ClientID,
			e.Status,
			e.StatusUpdatedAt,
			stage,
			e.CandidateName,
			e.CandidatePhone,
			e.RightToWork,
			e.RegistrationInfo,
			e.CommuteMinutes,
			e.ExpectedRate,
			e.Notes,
			e.UpdatedAt,
		); err != nil {
			return err
		}
		return events.InsertTx(ctx, tx, ev)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var stage []byte
	if err := row.Scan(
		&e.ID,
		&e.WorkspaceID,
		&e.CandidateID,
		&e.ClientID,
		&e.Status,
		&e.StatusUpdatedAt,
		&stage,
		&e.CandidateName,
		&e.CandidatePhone,
		&e.RightToWork,
		&e.RegistrationInfo,
		&e.CommuteMinutes,
		&e.ExpectedRate,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if len(stage) > 0 {
		if err := json.Unmarshal(stage, &e.StageTimes); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

func marshalStageTimes(m map[Status]time.Time) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func terminalStatusList() []string {
	var out []string
	for s, next := range transitions {
		if len(next) == 0 {
			out = append(out, string(s))
		}
	}
	return out
}
