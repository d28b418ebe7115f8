package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{pgx.ErrNoRows, ErrNotFound},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}), ErrOverlap},
		{&pgconn.PgError{Code: "23505"}, ErrDuplicate},
	}
	for _, tc := range cases {
		if got := translate(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("translate(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	other := errors.New("connection reset")
	if got := translate(other); got != other {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if translate(nil) != nil {
		t.Fatal("expected nil")
	}
}
