// Package catalog is the travel catalog and booking store: hotels and
// their rooms, tour packages, points of interest, user favorites, and
// bookings. It runs on PostgreSQL (including hosted Supabase) or on a
// local SQLite file.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup by identifier matches nothing.
// Query failures are returned as other errors.
var ErrNotFound = errors.New("not found")

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 10

// Dialect selects SQL differences between backends.
type Dialect int

// Supported dialects.
const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return SQLite, fmt.Errorf("unsupported catalog driver %q", driver)
	}
}

// SQLStore implements the catalog over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
	newRef  func() string
}

// Open connects to the catalog database and applies the schema.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite && driver == "sqlite3" && !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if dialect == SQLite {
		// SQLite has one writer.
		db.SetMaxOpenConns(1)
	}

	s := New(db, dialect, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}
	return s, nil
}

// New wraps an open database. The schema is not touched; call
// [SQLStore.Migrate] when needed.
func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
		newRef:  NewBookingReference,
	}
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t to the value stored in timestamp columns.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(timeLayout)
}

// where accumulates optional filter clauses.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// like adds a case-insensitive substring match when value is non-empty.
func (w *where) like(column, value string) {
	if value == "" {
		return
	}
	w.add("LOWER("+column+") LIKE LOWER(?)", "%"+value+"%")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryList runs query and scans every row with scan.
func queryList[T any](ctx context.Context, s *SQLStore, query string, args []any, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne runs query and scans a single row, mapping sql.ErrNoRows to
// ErrNotFound.
func queryOne[T any](ctx context.Context, s *SQLStore, query string, args []any, scan func(rowScanner) (T, error)) (T, error) {
	v, err := scan(s.db.QueryRowContext(ctx, s.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, ErrNotFound
	}
	return v, err
}
