package pipeline

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolationMapsToConflict(t *testing.T) {
	uniq := &pgconn.PgError{Code: "23505", ConstraintName: "pipeline_entries_open_unmatched"}
	if !isUniqueViolation(fmt.Errorf("insert: %w", uniq)) {
		t.Fatalf("wrapped 23505 should be recognized")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("a foreign key violation is not a uniqueness conflict")
	}
	if isUniqueViolation(fmt.Errorf("plain error")) {
		t.Fatalf("non-pg errors are passed through")
	}
}
