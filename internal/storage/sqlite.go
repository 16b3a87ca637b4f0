package storage

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	sqlStorage
}

// NewSQLiteStorage opens (or creates) the SQLite database at dbPath.
// Tables are named <namespace>_submissions and <namespace>_metadata.
func NewSQLiteStorage(dbPath, namespace string) (*SQLiteStorage, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db, namespace); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStorage] Initialized with database: %s", dbPath)
	return &SQLiteStorage{sqlStorage{
		db:      db,
		backend: "sqlite",
		q: sqlQueries{
			upsertSubmission: fmt.Sprintf(`
				INSERT INTO %[1]s_submissions (id, fields, stored_at) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET fields = excluded.fields, stored_at = excluded.stored_at`, namespace),
			existsSubmission: fmt.Sprintf(`SELECT 1 FROM %s_submissions WHERE id = ? LIMIT 1`, namespace),
			selectAll:        fmt.Sprintf(`SELECT id, fields FROM %s_submissions ORDER BY id`, namespace),
			upsertMetadata: fmt.Sprintf(`
				INSERT INTO %[1]s_metadata (name, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, namespace),
			selectMetadata:   fmt.Sprintf(`SELECT value FROM %s_metadata WHERE name = ?`, namespace),
			countSubmissions: fmt.Sprintf(`SELECT COUNT(*) FROM %s_submissions`, namespace),
			lastStored:       fmt.Sprintf(`SELECT MAX(stored_at) FROM %s_submissions`, namespace),
		},
	}}, nil
}

func createSQLiteTables(db *sql.DB, namespace string) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s_submissions (
		id TEXT PRIMARY KEY,
		fields TEXT NOT NULL,
		stored_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_stored_at ON %[1]s_submissions(stored_at);
	CREATE TABLE IF NOT EXISTS %[1]s_metadata (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`, namespace)
	_, err := db.Exec(query)
	return err
}

// Ensure SQLiteStorage implements Storage
var _ Storage = (*SQLiteStorage)(nil)
