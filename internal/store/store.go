// Package store is the Postgres persistence layer: a bulk-insert sink
// for the import pipeline and a snapshot loader for reference data.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bodegahq/importer/internal/importer"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store implements importer.Sink on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes rows to table in a single multi-row statement. Rows may
// carry different key sets (optional columns); absent cells become NULL.
// A unique-constraint violation is returned wrapping
// importer.ErrDuplicateKey so the executor can fall back to row-by-row.
func (s *Store) Insert(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	if !identPattern.MatchString(table) {
		return fmt.Errorf("invalid table name: %q", table)
	}

	cols := columnUnion(rows)
	for _, c := range cols {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column name: %q", c)
		}
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, row[c])
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteByte(')')
	}

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return wrapDBError(err)
	}
	return nil
}

// Update patches a single row by id.
func (s *Store) Update(ctx context.Context, table string, id string, patch map[string]any) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("invalid table name: %q", table)
	}
	if len(patch) == 0 {
		return fmt.Errorf("empty patch")
	}

	cols := make([]string, 0, len(patch))
	for c := range patch {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column name: %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(table)
	sb.WriteString(" SET ")

	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, patch[c])
		fmt.Fprintf(&sb, "%s = $%d", c, len(args))
	}
	args = append(args, id)
	fmt.Fprintf(&sb, " WHERE id = $%d", len(args))

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row not found: %s", id)
	}
	return nil
}

// columnUnion collects every column appearing in the chunk, sorted so the
// generated SQL is deterministic.
func columnUnion(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func wrapDBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w (%s)", importer.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
