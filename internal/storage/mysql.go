package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStorage implements Storage using MySQL.
type MySQLStorage struct {
	sqlStorage
}

// NewMySQLStorage connects to MySQL.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStorage(dsn, namespace string) (*MySQLStorage, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(ctx, db, namespace); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStorage] Initialized with namespace: %s", namespace)
	return &MySQLStorage{sqlStorage{
		db:      db,
		backend: "mysql",
		q: sqlQueries{
			upsertSubmission: fmt.Sprintf(`
				INSERT INTO %s_submissions (id, fields, stored_at) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE fields = VALUES(fields), stored_at = VALUES(stored_at)`, namespace),
			existsSubmission: fmt.Sprintf("SELECT 1 FROM %s_submissions WHERE id = ? LIMIT 1", namespace),
			selectAll:        fmt.Sprintf("SELECT id, fields FROM %s_submissions ORDER BY id", namespace),
			upsertMetadata: fmt.Sprintf("INSERT INTO %s_metadata (name, value, updated_at) VALUES (?, ?, ?) "+
				"ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)", namespace),
			selectMetadata:   fmt.Sprintf("SELECT value FROM %s_metadata WHERE name = ?", namespace),
			countSubmissions: fmt.Sprintf("SELECT COUNT(*) FROM %s_submissions", namespace),
			lastStored:       fmt.Sprintf("SELECT MAX(stored_at) FROM %s_submissions", namespace),
		},
	}}, nil
}

// createMySQLTables runs one statement per call; the driver rejects multi-statement
// strings unless multiStatements is enabled in the DSN.
func createMySQLTables(ctx context.Context, db *sql.DB, namespace string) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_submissions (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			fields JSON NOT NULL,
			stored_at DATETIME(6) NOT NULL,
			INDEX idx_stored_at (stored_at)
		)`, namespace),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s_metadata ("+
			"name VARCHAR(191) NOT NULL PRIMARY KEY, "+
			"value TEXT NOT NULL, "+
			"updated_at DATETIME(6) NOT NULL)", namespace),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ensure MySQLStorage implements Storage
var _ Storage = (*MySQLStorage)(nil)
