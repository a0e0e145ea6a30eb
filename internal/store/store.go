// Package store archives report runs in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver.

	"github.com/AustinArrington87/membrane/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store wraps database access for archived runs.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// IsPostgresDSN reports whether dsn is a Postgres connection URL.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens or creates the archive and applies migrations. A postgres:// URL
// selects Postgres; anything else is a SQLite file path.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history dsn is empty")
	}
	var (
		db  *sql.DB
		err error
		d   dialect
	)
	if IsPostgresDSN(dsn) {
		d = dialectPostgres
		db, err = sql.Open("pgx", dsn)
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
		d = dialectSQLite
		db, err = sql.Open("sqlite", dsn)
	}
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, dialect: d, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
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

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id TEXT PRIMARY KEY,
			board TEXT NOT NULL,
			input_path TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			metric_names TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS report_rows (
			run_id TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			metric_values TEXT NOT NULL,
			PRIMARY KEY (run_id, row_index)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_report_runs_board ON report_runs(board, generated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a report table and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, board, input string, t model.Table) (id string, err error) {
	names, err := json.Marshal(t.Columns)
	if err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id = uuid.NewString()
	if _, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO report_runs (id, board, input_path, generated_at, metric_names) VALUES (?, ?, ?, ?, ?)`),
		id, board, input, s.now().UTC().Format(timeLayout), string(names),
	); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO report_rows (run_id, row_index, start_at, end_at, metric_values) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = stmt.Close()
	}()
	for i, row := range t.Rows {
		var values []byte
		values, err = json.Marshal(row.Values)
		if err != nil {
			return "", err
		}
		if _, err = stmt.ExecContext(ctx, id, i,
			row.Period.Start.UTC().Format(timeLayout),
			row.Period.End.UTC().Format(timeLayout),
			string(values),
		); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns archived runs, newest first. An empty board lists all
// boards; a non-positive limit lists everything.
func (s *Store) ListRuns(ctx context.Context, board string, limit int) ([]model.RunSummary, error) {
	query := `SELECT r.id, r.board, r.input_path, r.generated_at,
		(SELECT COUNT(*) FROM report_rows w WHERE w.run_id = r.id) AS periods
		FROM report_runs r
		WHERE (CAST(? AS TEXT) = '' OR r.board = ?)
		ORDER BY r.generated_at DESC`
	args := []any{board, board}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []model.RunSummary
	for rows.Next() {
		var run model.RunSummary
		var generatedAt string
		if err := rows.Scan(&run.ID, &run.Board, &run.Input, &generatedAt, &run.Periods); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, generatedAt)
		if err != nil {
			return nil, err
		}
		run.GeneratedAt = parsed
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LoadRun rebuilds the table stored under id.
func (s *Store) LoadRun(ctx context.Context, id string) (model.Table, error) {
	var table model.Table
	var names string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT board, metric_names FROM report_runs WHERE id = ?`), id,
	).Scan(&table.Board, &names)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return model.Table{}, err
	}
	if err := json.Unmarshal([]byte(names), &table.Columns); err != nil {
		return model.Table{}, fmt.Errorf("run %s: invalid metric names: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT start_at, end_at, metric_values FROM report_rows WHERE run_id = ? ORDER BY row_index ASC`), id)
	if err != nil {
		return model.Table{}, err
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var start, end, values string
		if err := rows.Scan(&start, &end, &values); err != nil {
			return model.Table{}, err
		}
		var row model.Row
		if row.Period.Start, err = time.Parse(timeLayout, start); err != nil {
			return model.Table{}, err
		}
		if row.Period.End, err = time.Parse(timeLayout, end); err != nil {
			return model.Table{}, err
		}
		if err := json.Unmarshal([]byte(values), &row.Values); err != nil {
			return model.Table{}, fmt.Errorf("run %s: invalid values: %w", id, err)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return model.Table{}, err
	}
	return table, nil
}
