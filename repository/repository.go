// Package repository is the data access layer: one interface per aggregate,
// one SQLite implementation each. Services depend on the interfaces only.
//
// Conventions shared by every implementation:
//   - ids are generated in SQL as lower(hex(randomblob(8))) and read back
//     with RETURNING, together with created_at
//   - sql.ErrNoRows maps to pkg.ErrNotFound, unique violations to
//     pkg.ErrAlreadyExists; raw driver errors are wrapped with %w and never
//     shown to clients
//   - batch loads (attachments, reactions, mentions for a page of messages)
//     use a single IN query keyed by message id instead of N+1 lookups
package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/chorushq/chorus/pkg"
)

// requireAffected turns a zero-row UPDATE or DELETE into pkg.ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

// isUniqueViolation detects a SQLite UNIQUE constraint failure. The modernc
// driver exposes no typed error for it, so this matches the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n parameters of an IN clause.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toAnySlice widens string args for variadic query parameters.
func toAnySlice(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
