package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert run: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}

	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation must not count as unique violation")
	}

	if isUniqueViolation(errors.New("connection refused")) {
		t.Error("plain error must not count as unique violation")
	}
}
