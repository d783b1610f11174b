package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the violation must reference that constraint (or,
// on SQLite, the column list the constraint covers).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" || strings.Contains(msg, constraintName) {
		return true
	}
	return sqliteIndexName(msg) == constraintName
}

// sqliteIndexName rebuilds ux_<table>_<col>[_<col>] from SQLite's
// "UNIQUE constraint failed: table.col, table.col" message.
func sqliteIndexName(msg string) string {
	_, cols, ok := strings.Cut(msg, "UNIQUE constraint failed: ")
	if !ok {
		return ""
	}
	var table string
	parts := []string{}
	for _, col := range strings.Split(cols, ",") {
		t, c, ok := strings.Cut(strings.TrimSpace(col), ".")
		if !ok {
			return ""
		}
		table = t
		parts = append(parts, c)
	}
	return "ux_" + table + "_" + strings.Join(parts, "_")
}
