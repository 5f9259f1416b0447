package record

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// SQLiteStore keeps the record as four rows of a key/value table. A save
// replaces all rows inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, persistErr(err, "sqlite", "create database directory")
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, persistErr(err, "sqlite", "open sqlite database")
	}
	// One connection: keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, persistErr(err, "sqlite", "initialize schema")
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS step_record (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) Load(ctx context.Context) (*steps.State, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM step_record")
	if err != nil {
		return nil, persistErr(err, s.Backend(), "query record")
	}
	defer func() { _ = rows.Close() }()

	m := make(map[string]string, len(Keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, persistErr(err, s.Backend(), "scan record")
		}
		m[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, s.Backend(), "iterate record")
	}
	return Decode(m)
}

func (s *SQLiteStore) Save(ctx context.Context, st steps.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(err, s.Backend(), "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM step_record"); err != nil {
		return persistErr(err, s.Backend(), "clear record")
	}

	fields := Encode(st)
	placeholders := make([]string, 0, len(Keys))
	args := make([]any, 0, 2*len(Keys))
	for _, k := range Keys {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, k, fields[k])
	}
	query := fmt.Sprintf("INSERT INTO step_record (key, value) VALUES %s", strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return persistErr(err, s.Backend(), "insert record")
	}
	if err := tx.Commit(); err != nil {
		return persistErr(err, s.Backend(), "commit record")
	}
	return nil
}

// DB exposes the handle for tests that need to tamper with rows.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }
